// Package auth resolves cloud credentials from the ambient environment into an
// explicit value that is handed to the storage and vision backends.
package auth

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/menta2k/label-analyzer/pkg/fault"
)

// Credentials carries resolved provider credentials. Only the providers a run
// needs are populated.
type Credentials struct {
	AWS    *aws.Config
	Google []option.ClientOption

	Profile string
	Region  string
}

// AWSOptions select the shared config profile and region
type AWSOptions struct {
	Profile string
	Region  string
}

// GoogleOptions select an explicit credentials file; empty uses application default credentials
type GoogleOptions struct {
	CredentialsFile string
	Project         string
}

var googleScopes = []string{"https://www.googleapis.com/auth/cloud-platform"}

// ResolveAWS loads the AWS credential chain and checks that it yields credentials
func ResolveAWS(ctx context.Context, opts AWSOptions) (*Credentials, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fault.New(fault.Auth, "load aws config", err)
	}

	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fault.New(fault.Auth, "retrieve aws credentials", err)
	}

	return &Credentials{
		AWS:     &cfg,
		Profile: opts.Profile,
		Region:  cfg.Region,
	}, nil
}

// ResolveGoogle finds Google credentials, either from a file or from application default credentials
func ResolveGoogle(ctx context.Context, opts GoogleOptions) (*Credentials, error) {
	var creds *google.Credentials
	if opts.CredentialsFile != "" {
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fault.New(fault.Auth, "read google credentials file", err)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, googleScopes...)
		if err != nil {
			return nil, fault.New(fault.Auth, "parse google credentials file "+opts.CredentialsFile, err)
		}
	} else {
		var err error
		creds, err = google.FindDefaultCredentials(ctx, googleScopes...)
		if err != nil {
			return nil, fault.New(fault.Auth, "find google default credentials", err)
		}
	}
	if _, err := creds.TokenSource.Token(); err != nil {
		return nil, fault.New(fault.Auth, "google token", err)
	}

	clientOpts := []option.ClientOption{option.WithCredentials(creds)}
	if opts.Project != "" {
		clientOpts = append(clientOpts, option.WithQuotaProject(opts.Project))
	}
	return &Credentials{Google: clientOpts}, nil
}

// Merge combines two partially resolved credential sets
func Merge(a, b *Credentials) *Credentials {
	out := &Credentials{}
	for _, c := range []*Credentials{a, b} {
		if c == nil {
			continue
		}
		if c.AWS != nil {
			out.AWS = c.AWS
			out.Profile = c.Profile
			out.Region = c.Region
		}
		if c.Google != nil {
			out.Google = c.Google
		}
	}
	return out
}

// RequireAWS returns the AWS config or an AuthError when it was never resolved
func (c *Credentials) RequireAWS() (aws.Config, error) {
	if c == nil || c.AWS == nil {
		return aws.Config{}, fault.New(fault.Auth, "aws credentials", fmt.Errorf("not resolved"))
	}
	return *c.AWS, nil
}

// ProfileName returns the profile in use for logging
func (c *Credentials) ProfileName() string {
	if c == nil || c.Profile == "" {
		return "default"
	}
	return c.Profile
}

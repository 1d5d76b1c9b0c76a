package fault

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

var awsCodeKinds = map[string]Kind{
	"NoSuchKey":    NotFound,
	"NoSuchBucket": NotFound,
	"NotFound":     NotFound,

	"AccessDenied":          Permission,
	"AccessDeniedException": Permission,
	"AllAccessDisabled":     Permission,
	"Forbidden":             Permission,

	"ExpiredToken":                Auth,
	"ExpiredTokenException":       Auth,
	"InvalidAccessKeyId":          Auth,
	"InvalidClientTokenId":        Auth,
	"InvalidToken":                Auth,
	"MissingAuthenticationToken":  Auth,
	"SignatureDoesNotMatch":       Auth,
	"UnrecognizedClientException": Auth,
}

// FromAWS classifies an error returned by an AWS SDK v2 client
func FromAWS(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		kind, ok := awsCodeKinds[code]
		if !ok {
			kind = Service
		}
		return &Error{Kind: kind, Op: op, Code: code, Err: err}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound, http.StatusForbidden, http.StatusUnauthorized:
			return FromHTTPStatus(op, respErr.HTTPStatusCode(), err)
		}
	}

	// credential providers fail before a request is signed
	msg := err.Error()
	if strings.Contains(msg, "failed to retrieve credentials") ||
		strings.Contains(msg, "failed to refresh cached credentials") ||
		strings.Contains(msg, "no EC2 IMDS role found") {
		return New(Auth, op, err)
	}

	return New(Service, op, err)
}

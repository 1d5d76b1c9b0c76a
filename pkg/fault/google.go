package fault

import (
	"errors"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FromGoogle classifies an error returned by a Google Cloud client, either a
// JSON API error or a gRPC status
func FromGoogle(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return FromHTTPStatus(op, apiErr.Code, err)
	}

	if st, ok := status.FromError(err); ok {
		kind := Service
		switch st.Code() {
		case codes.Unauthenticated:
			kind = Auth
		case codes.PermissionDenied:
			kind = Permission
		case codes.NotFound:
			kind = NotFound
		}
		return &Error{Kind: kind, Op: op, Code: st.Code().String(), Err: err}
	}

	return New(Service, op, err)
}

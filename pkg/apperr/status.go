package apperr

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code maps an error kind onto a gRPC status code.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, ErrIndex):
		return codes.OutOfRange
	case errors.Is(err, ErrInvalidTransition):
		return codes.FailedPrecondition
	case errors.Is(err, ErrUnauthorized):
		return codes.PermissionDenied
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	default:
		return codes.Internal
	}
}

// ToStatus converts err into a gRPC status error carrying the kind as its code.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(Code(err), err.Error())
}

// remoteError is a domain error reconstructed on the client side of a gRPC call.
type remoteError struct {
	kind error
	msg  string
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Is(target error) bool { return target == e.kind }

// FromStatus is the inverse of ToStatus. Codes without a domain kind are returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}
	var kind error
	switch st.Code() {
	case codes.InvalidArgument:
		kind = ErrValidation
	case codes.OutOfRange:
		kind = ErrIndex
	case codes.FailedPrecondition:
		kind = ErrInvalidTransition
	case codes.PermissionDenied:
		kind = ErrUnauthorized
	case codes.NotFound:
		kind = ErrNotFound
	default:
		return err
	}
	return &remoteError{kind: kind, msg: st.Message()}
}

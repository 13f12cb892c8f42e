package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RowanDark/cipherlab/internal/cipher"
	"github.com/RowanDark/cipherlab/internal/cipherr"
	"github.com/RowanDark/cipherlab/internal/history"
	"github.com/RowanDark/cipherlab/internal/service"
)

// toStatus maps service errors onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, cipher.ErrUnknownOperation),
		errors.Is(err, cipher.ErrRecipeNotFound),
		errors.Is(err, history.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, service.ErrHistoryDisabled):
		return codes.Unavailable
	}
	switch kind, _ := cipherr.KindOf(err); kind {
	case cipherr.KindValidation, cipherr.KindFormat:
		return codes.InvalidArgument
	case cipherr.KindRange:
		return codes.OutOfRange
	}
	return codes.Internal
}

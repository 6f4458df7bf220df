package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

type ErrorClass int

const (
	ClassInternal ErrorClass = iota
	ClassValidation
	ClassNotFound
	ClassConflict
)

type ClassifiedError struct {
	Class         ErrorClass
	InternalError error
	ClientMessage string
	OperationName string
}

// ErrorClassifier maps internal errors to sanitized client responses,
// logging the full detail server-side only.
type ErrorClassifier struct {
	logger *slog.Logger
}

func NewErrorClassifier(logger *slog.Logger) *ErrorClassifier {
	return &ErrorClassifier{logger: logger}
}

func (ec *ErrorClassifier) Classify(err error, operation string) *ClassifiedError {
	classified := &ClassifiedError{
		InternalError: err,
		OperationName: operation,
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		classified.Class = ClassValidation
		classified.ClientMessage = "The request contains invalid parameters"
	case errors.Is(err, ErrRunNotFound):
		classified.Class = ClassNotFound
		classified.ClientMessage = "The requested verification run was not found"
	case errors.Is(err, ErrAlertNotBroken):
		classified.Class = ClassValidation
		classified.ClientMessage = "The referenced verification run is not a broken-chain alert"
	case errors.Is(err, ErrTailConflict):
		classified.Class = ClassConflict
		classified.ClientMessage = "A concurrent write conflicted, retry the request"
	default:
		classified.Class = ClassInternal
		classified.ClientMessage = "An unexpected internal error occurred"
	}

	return classified
}

// LogAndStatus logs the classified error and returns the HTTP status and
// sanitized message for the response body.
func (ec *ErrorClassifier) LogAndStatus(ctx context.Context, classified *ClassifiedError) (int, string) {
	ec.logger.ErrorContext(ctx, "operation failed",
		"operation", classified.OperationName,
		"error_class", int(classified.Class),
		"internal_error", classified.InternalError.Error(),
	)

	var status int
	switch classified.Class {
	case ClassValidation:
		status = http.StatusUnprocessableEntity
	case ClassNotFound:
		status = http.StatusNotFound
	case ClassConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}

	return status, classified.ClientMessage
}

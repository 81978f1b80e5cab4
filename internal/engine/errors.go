package engine

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
)

type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

// UnknownColumnError reports a filter leaf referencing a column that does
// not exist in the (enriched) table.
func UnknownColumnError(column string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_COLUMN",
		Status:  400,
		Message: fmt.Sprintf("unknown column: %s", column),
	}
}

// MalformedFilterError reports a filter node that is none of the four
// recognized shapes, or a leaf with an invalid operator/value pairing.
func MalformedFilterError(detail string) *AppError {
	return &AppError{
		Code:    "INVALID_FILTER",
		Status:  400,
		Message: fmt.Sprintf("malformed filter expression: %s", detail),
	}
}

// IntentNotRecognizedError means the query did not plausibly ask for
// filtering. Distinguishable from extraction failure so UIs can prompt
// differently.
func IntentNotRecognizedError() *AppError {
	return &AppError{
		Code:    "INTENT_NOT_RECOGNIZED",
		Status:  400,
		Message: "query does not appear to be a data filter request",
	}
}

// GroupColumnNotIdentifiedError means the model picked no grouping column,
// or one outside the candidate menu.
func GroupColumnNotIdentifiedError(col string) *AppError {
	msg := "could not identify a grouping column for query"
	if col != "" {
		msg = fmt.Sprintf("grouping column %q is not an entity id column", col)
	}
	return &AppError{
		Code:    "GROUP_COLUMN_NOT_IDENTIFIED",
		Status:  400,
		Message: msg,
	}
}

// FilterNotExtractedError means the extraction call returned no filter.
func FilterNotExtractedError() *AppError {
	return &AppError{
		Code:    "FILTER_NOT_EXTRACTED",
		Status:  400,
		Message: "could not extract filtering criteria from query",
	}
}

// ModelUnavailableError wraps a failed or timed-out model call. Not the
// caller's fault; surfaced as 502 and never degraded to "no filter".
func ModelUnavailableError(stage string, err error) *AppError {
	return &AppError{
		Code:    "MODEL_UNAVAILABLE",
		Status:  502,
		Message: fmt.Sprintf("model call failed during %s: %v", stage, err),
	}
}

func UnknownEntityError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_ENTITY",
		Status:  404,
		Message: fmt.Sprintf("unknown entity: %s", name),
	}
}

func NotFoundError(entity, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("no data found for %s %s", entity, id),
	}
}

func NoDatasetError() *AppError {
	return &AppError{
		Code:    "NO_DATASET",
		Status:  409,
		Message: "no dataset loaded; upload a CSV first",
	}
}

func InvalidCSVError(err error) *AppError {
	return &AppError{
		Code:    "INVALID_CSV",
		Status:  422,
		Message: fmt.Sprintf("could not read CSV: %v", err),
	}
}

// ErrorHandler is the app-level Fiber error handler: AppErrors map to their
// status and wire shape, everything else becomes an opaque 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(ErrorResponse{
		Error: &AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}

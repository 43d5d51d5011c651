package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/huangsam/exprora/internal/errs"
)

// errorPayload is the body of every non-2xx response.
type errorPayload struct {
	Code      errs.Code      `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

// respondError aborts the request with the error's status and body.
// Errors without a code are reported as internal and their cause is not exposed.
func respondError(c *gin.Context, err error) {
	app := errs.As(err)
	message := app.Message
	if app.Code == errs.CodeInternal {
		message = "internal server error"
	}
	c.AbortWithStatusJSON(errs.HTTPStatus(app.Code), errorBody{Error: errorPayload{
		Code:      app.Code,
		Message:   message,
		Details:   app.Details,
		RequestID: GetRequestID(c),
	}})
}

// bindingError turns a gin binding failure into a validation error. Field
// failures from the validator are listed by JSON field name and failed tag.
func bindingError(err error) *errs.AppError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fe.Tag()
		}
		return errs.Validation("invalid request").WithDetails(map[string]any{"fields": fields})
	}
	return errs.Wrap(errs.CodeValidation, "invalid request", err)
}

package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/rangoon-shop/rangoon-admin/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeValid decodes a JSON body into target and validates its struct tags.
// Malformed bodies are BadRequest; tag failures stay validator.ValidationErrors
// so apperr.Classify can list the fields.
func DecodeValid(r *http.Request, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return apperr.Wrap(apperr.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), err)
	}
	return validate.Struct(target)
}

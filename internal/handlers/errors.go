package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
)

// apiError writes the response for a service error so every handler
// surfaces the same shapes. Errors that carry payload (conflict codes,
// open slots, eligible counts) are written with e.JSON directly:
// apis.NewApiError replaces non-validation data values with a generic
// validation item, which would strip exactly the context a client needs
// to self-correct.
func apiError(e *core.RequestEvent, err error) error {
	var ve *status.ValidationError
	if errors.As(err, &ve) {
		return e.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, ve.Reason, map[string]any{
			"field": ve.Field,
		}))
	}
	var nf *status.NotFoundError
	if errors.As(err, &nf) {
		return apis.NewNotFoundError(nf.Error(), nil)
	}
	var ae *status.AuthorizationError
	if errors.As(err, &ae) {
		return apis.NewForbiddenError(ae.Reason, nil)
	}
	var ce *status.ConflictError
	if errors.As(err, &ce) {
		data := map[string]any{"code": string(ce.Code)}
		if len(ce.OpenSlots) > 0 {
			data["openSlots"] = ce.OpenSlots
		}
		if ce.Code == status.ConflictInsufficientUsers {
			data["eligible"] = ce.Eligible
			data["missing"] = ce.Missing
		}
		return e.JSON(http.StatusConflict, errorBody(http.StatusConflict, ce.Message, data))
	}
	var cc *status.ConcurrencyError
	if errors.As(err, &cc) {
		return e.JSON(http.StatusConflict, errorBody(http.StatusConflict, "another change is in flight, retry", map[string]any{
			"code": "Busy",
		}))
	}
	var ee *status.ExternalServiceError
	if errors.As(err, &ee) {
		return e.JSON(http.StatusBadGateway, errorBody(http.StatusBadGateway, "upstream service failed", map[string]any{
			"service": ee.Service,
		}))
	}
	return apis.NewApiError(http.StatusInternalServerError, "something went wrong", nil)
}

// errorBody matches the envelope PocketBase uses for its own API errors.
func errorBody(code int, message string, data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"status":  code,
		"message": message,
		"data":    data,
	}
}

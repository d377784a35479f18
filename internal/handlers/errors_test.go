package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
)

func newErrorEvent() (*core.RequestEvent, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	e := &core.RequestEvent{}
	e.Response = rec
	e.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	return e, rec
}

// writtenError decodes the body apiError wrote to the response, the shape
// a client actually receives.
func writtenError(t *testing.T, rec *httptest.ResponseRecorder) (message string, data map[string]any) {
	t.Helper()
	var body struct {
		Status  int            `json:"status"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rec.Code, body.Status)
	return body.Message, body.Data
}

func asApiError(t *testing.T, err error) *router.ApiError {
	t.Helper()
	var apiErr *router.ApiError
	require.True(t, errors.As(err, &apiErr), "expected an api error, got %v", err)
	return apiErr
}

func TestApiError_Validation(t *testing.T) {
	e, rec := newErrorEvent()
	require.NoError(t, apiError(e, &status.ValidationError{Field: "role", Reason: "unknown role feeder"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	msg, data := writtenError(t, rec)
	assert.Equal(t, "unknown role feeder", msg)
	assert.Equal(t, "role", data["field"])
}

func TestApiError_NotFound(t *testing.T) {
	e, _ := newErrorEvent()
	apiErr := asApiError(t, apiError(e, &status.NotFoundError{Resource: "session", ID: "scrim-1"}))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestApiError_Forbidden(t *testing.T) {
	e, _ := newErrorEvent()
	apiErr := asApiError(t, apiError(e, &status.AuthorizationError{Reason: "Only admins can move other users"}))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestApiError_Conflict_CarriesOpenSlots(t *testing.T) {
	e, rec := newErrorEvent()
	require.NoError(t, apiError(e, &status.ConflictError{
		Code:    status.ConflictSpotTaken,
		Message: "teamOne/Mid is taken",
		OpenSlots: []status.Slot{
			{Team: "teamOne", Role: "Top"},
			{Team: "teamTwo", Role: "Support"},
		},
	}))
	require.Equal(t, http.StatusConflict, rec.Code)

	msg, data := writtenError(t, rec)
	assert.Equal(t, "teamOne/Mid is taken", msg)
	assert.Equal(t, "SpotTaken", data["code"])

	// the open slot list must survive to the client verbatim
	slots, ok := data["openSlots"].([]any)
	require.True(t, ok, "openSlots missing from response body: %v", data)
	require.Len(t, slots, 2)
	first, ok := slots[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "teamOne", first["team"])
	assert.Equal(t, "Top", first["role"])
}

func TestApiError_Conflict_InsufficientUsers(t *testing.T) {
	e, rec := newErrorEvent()
	require.NoError(t, apiError(e, &status.ConflictError{
		Code:     status.ConflictInsufficientUsers,
		Message:  "need 10, found 3",
		Eligible: 3,
		Missing:  7,
	}))
	require.Equal(t, http.StatusConflict, rec.Code)

	_, data := writtenError(t, rec)
	assert.Equal(t, "InsufficientEligibleUsers", data["code"])
	assert.EqualValues(t, 3, data["eligible"])
	assert.EqualValues(t, 7, data["missing"])
}

func TestApiError_Concurrency(t *testing.T) {
	e, rec := newErrorEvent()
	require.NoError(t, apiError(e, &status.ConcurrencyError{SessionID: "scrim-1"}))
	require.Equal(t, http.StatusConflict, rec.Code)

	_, data := writtenError(t, rec)
	assert.Equal(t, "Busy", data["code"])
}

func TestApiError_External(t *testing.T) {
	e, rec := newErrorEvent()
	require.NoError(t, apiError(e, &status.ExternalServiceError{Service: "tournament provider", Err: errors.New("boom")}))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	_, data := writtenError(t, rec)
	assert.Equal(t, "tournament provider", data["service"])
}

func TestApiError_Unknown(t *testing.T) {
	e, _ := newErrorEvent()
	apiErr := asApiError(t, apiError(e, errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/princinho/escolaportal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorResponse(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRespondError_StatusTable(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: pending -> completed", services.ErrInvalidTransition), http.StatusUnprocessableEntity},
		{services.ErrDateUnavailable, http.StatusUnprocessableEntity},
		{services.ErrStale, http.StatusConflict},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrBlobStoreDisabled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w, body := errorResponse(t, tc.err)
		assert.Equal(t, tc.want, w.Code, tc.err.Error())
		assert.NotEmpty(t, body["error"])
	}
}

func TestRespondError_InternalErrorsAreNotLeaked(t *testing.T) {
	_, body := errorResponse(t, errors.New("mongo: connection refused on 10.0.0.3"))
	assert.Equal(t, "internal error", body["error"])
}

func TestRespondError_StructuredErrors(t *testing.T) {
	w, body := errorResponse(t, &services.ValidationError{Fields: []services.FieldError{{Field: "date", Message: "required"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, body["fields"], 1)

	w, body = errorResponse(t, &services.ConflictError{Conflicts: []services.Conflict{{EquipmentName: "iPad 01"}}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, body["conflicts"], 1)

	w, body = errorResponse(t, &services.BatchError{Created: 2, Err: errors.New("write failed")})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.EqualValues(t, 2, body["created"])
}

func TestLimitsClamp(t *testing.T) {
	l := Limits{Default: 20, Max: 100}
	assert.Equal(t, 20, l.clamp(0))
	assert.Equal(t, 20, l.clamp(-3))
	assert.Equal(t, 50, l.clamp(50))
	assert.Equal(t, 100, l.clamp(1000))
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"665f1c2b9d3e4a0012345678"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	_, err = parseIDs([]string{"nope"})
	var verr *services.ValidationError
	assert.ErrorAs(t, err, &verr)
}

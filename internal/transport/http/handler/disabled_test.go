package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDisabledRouter(svc *recipientSvcMock) http.Handler {
	h := NewDisabledHandler(svc)
	r := chi.NewRouter()
	r.Get("/disabled", h.List)
	r.Put("/disabled/{handle}", h.Disable)
	r.Delete("/disabled/{handle}", h.Enable)
	return r
}

func TestDisabledList_EmptyIsJSONArray(t *testing.T) {
	svc := &recipientSvcMock{}
	svc.On("Disabled").Return(nil, nil).Once()
	router := newDisabledRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/disabled", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope DisabledEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotNil(t, envelope.Disabled)
	assert.Empty(t, envelope.Disabled)
}

func TestDisabledList_ReturnsHandles(t *testing.T) {
	svc := &recipientSvcMock{}
	svc.On("Disabled").Return([]string{"alice", "bob"}, nil).Once()
	router := newDisabledRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/disabled", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope DisabledEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, []string{"alice", "bob"}, envelope.Disabled)
}

func TestDisabledDisable_DelegatesHandle(t *testing.T) {
	svc := &recipientSvcMock{}
	svc.On("Disable", "carol").Return(nil).Once()
	router := newDisabledRouter(svc)

	req := httptest.NewRequest(http.MethodPut, "/disabled/carol", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestDisabledEnable_DelegatesHandle(t *testing.T) {
	svc := &recipientSvcMock{}
	svc.On("Enable", "carol").Return(nil).Once()
	router := newDisabledRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/disabled/carol", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

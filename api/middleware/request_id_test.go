package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDKeepsValidCallerID(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(RequestIDHeader, "app-7f3a.2")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, "app-7f3a.2", resp.Header().Get(RequestIDHeader))

	for _, bad := range []string{"", "has space", "<script>", strings.Repeat("a", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		req.Header.Set(RequestIDHeader, bad)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		got := resp.Header().Get(RequestIDHeader)
		assert.NotEqual(t, bad, got)
		assert.Len(t, got, 36)
	}
}

func TestRecovererAnswersInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("cart exploded")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NotContains(t, resp.Body.String(), "cart exploded")
}

func TestRecovererReraisesAbort(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

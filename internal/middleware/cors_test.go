package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsRequest(t *testing.T, allowedOrigins []string, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	handler := CORS(allowedOrigins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(method, "/", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestCORS_WildcardWithoutCredentials(t *testing.T) {
	w := corsRequest(t, []string{"*"}, http.MethodGet, "https://anywhere.test")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.test" {
		t.Errorf("Expected origin echoed, got %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("Expected no credentials header on wildcard match")
	}
}

func TestCORS_ExplicitOriginGetsCredentials(t *testing.T) {
	// Wildcard listed first must not shadow the explicit entry.
	w := corsRequest(t, []string{"*", "https://app.test"}, http.MethodGet, "https://app.test")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.test" {
		t.Errorf("Expected origin echoed, got %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("Expected credentials header for explicitly listed origin")
	}
}

func TestCORS_UnlistedOriginGetsNoHeaders(t *testing.T) {
	w := corsRequest(t, []string{"https://app.test"}, http.MethodGet, "https://evil.test")

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("Expected no CORS headers for unlisted origin")
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	w := corsRequest(t, []string{"*"}, http.MethodOptions, "https://anywhere.test")

	if w.Code != http.StatusOK {
		t.Errorf("Expected preflight 200, got %d", w.Code)
	}
}

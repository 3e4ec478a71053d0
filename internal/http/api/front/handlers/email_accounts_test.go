package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/onboarding"
)

func newFallbackRouter() http.Handler {
	gin.SetMode(gin.TestMode)
	h := NewEmailAccountHandler(onboarding.NewSelector(nil, nil, nil, nil), nil)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("repID", uint64(7)) })
	r.POST("/email-accounts/fallback", h.Fallback)
	return r
}

func postFallback(t *testing.T, r http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if errEncode := json.NewEncoder(&buf).Encode(body); errEncode != nil {
		t.Fatalf("encode body: %v", errEncode)
	}
	req := httptest.NewRequest(http.MethodPost, "/email-accounts/fallback", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFallbackFromAnyStep(t *testing.T) {
	r := newFallbackRouter()

	for _, from := range []string{
		"",
		"not_started",
		"trying_silent_oauth",
		"silent_oauth_failed",
		"guided_smtp_pending",
		"credentials_tested",
	} {
		w := postFallback(t, r, gin.H{"from": from})
		if w.Code != http.StatusOK {
			t.Fatalf("from %q: status %d: %s", from, w.Code, w.Body.String())
		}
		var out struct {
			Session onboarding.Session `json:"session"`
		}
		if errDecode := json.Unmarshal(w.Body.Bytes(), &out); errDecode != nil {
			t.Fatalf("from %q: decode: %v", from, errDecode)
		}
		if out.Session.Current != onboarding.StateManualFallback {
			t.Fatalf("from %q: unexpected state %s", from, out.Session.Current)
		}
	}
}

func TestFallbackRejectsUnknownStep(t *testing.T) {
	r := newFallbackRouter()

	for _, from := range []string{"verified", "manual_fallback", "bogus"} {
		w := postFallback(t, r, gin.H{"from": from})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("from %q: status %d: %s", from, w.Code, w.Body.String())
		}
	}
}

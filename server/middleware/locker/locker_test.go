package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCheck(t *testing.T) {
	l := New()
	h := l.Check(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	tests := []struct {
		locked bool
		path   string
		want   int
	}{
		{false, "/v230/voltages", http.StatusTeapot},
		{true, "/v230/voltages", http.StatusLocked},
		{true, "/v230/lock", http.StatusTeapot},
		{true, "/v230/endpoints", http.StatusTeapot},
		{true, "/v230/lockout-relays", http.StatusLocked},
	}
	for _, tt := range tests {
		if tt.locked {
			l.Lock()
		} else {
			l.Unlock()
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.want {
			t.Errorf("locked=%t %s: expected %d got %d", tt.locked, tt.path, tt.want, w.Code)
		}
	}
}

func TestHTTPSetGet(t *testing.T) {
	l := New()
	w := httptest.NewRecorder()
	l.HTTPSet(w, httptest.NewRequest(http.MethodPost, "/lock", strings.NewReader(`{"bool":true}`)))
	if w.Code != http.StatusOK || !l.Locked() {
		t.Fatalf("expected the locker to lock, got %d", w.Code)
	}
	w = httptest.NewRecorder()
	l.HTTPGet(w, httptest.NewRequest(http.MethodGet, "/lock", nil))
	if body := strings.TrimSpace(w.Body.String()); body != `{"bool":true}` {
		t.Errorf("unexpected body %s", body)
	}
	w = httptest.NewRecorder()
	l.HTTPSet(w, httptest.NewRequest(http.MethodPost, "/lock", strings.NewReader(`nope`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad body, got %d", w.Code)
	}
}

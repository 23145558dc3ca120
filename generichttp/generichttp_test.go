package generichttp

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nasa-jpl/golab-vme/vme"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{vme.ErrUnsupported, http.StatusNotImplemented},
		{fmt.Errorf("reading: %w", vme.ErrNotMapped), http.StatusServiceUnavailable},
		{vme.ErrNilRegion, http.StatusServiceUnavailable},
		{vme.ErrChannelRange, http.StatusBadRequest},
		{vme.ErrMacroBusy, http.StatusConflict},
		{&vme.MacroError{Code: 0x8401, Status: 2}, http.StatusBadGateway},
		{errors.New("bus error"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestSetUint16Range(t *testing.T) {
	var got uint16
	h := SetUint16(func(v uint16) error { got = v; return nil })
	tests := []struct {
		body string
		code int
	}{
		{`{"int":65535}`, http.StatusOK},
		{`{"int":65536}`, http.StatusBadRequest},
		{`{"int":-1}`, http.StatusBadRequest},
		{`{"int":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))
		if w.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.body, tt.code, w.Code)
		}
	}
	if got != 0xFFFF {
		t.Errorf("expected 0xFFFF to be set, got 0x%04X", got)
	}
}

func TestGetJSON(t *testing.T) {
	type pair struct {
		A int `json:"a"`
	}
	w := httptest.NewRecorder()
	GetJSON(func() (pair, error) { return pair{A: 3}, nil })(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"a":3}` {
		t.Errorf("unexpected reply %d %q", w.Code, w.Body.String())
	}
	w = httptest.NewRecorder()
	GetJSON(func() (pair, error) { return pair{}, vme.ErrNotMapped })(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for an unmapped module, got %d", w.Code)
	}
}

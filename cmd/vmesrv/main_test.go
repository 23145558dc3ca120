package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

const crateYAML = `addr: ":9100"
bus:
  kind: sim
poll_interval: 0s
reboot_delay: 10ms
settle: 0s
modules:
  - type: V210
    address: 0xC000
    mode: a16
    name: rly
  - type: v230-2
    address: 0xD000
    mode: a16
    name: adc
    endpoint: crate/adc/
  - type: v280
    address: 0x200000
    mode: a24
    name: din
`

func loadTestConfig(t *testing.T, args ...string) Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vmesrv.yml")
	if err := os.WriteFile(path, []byte(crateYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	k, err := setupconfig(append([]string{"--config", path}, args...))
	if err != nil {
		t.Fatal(err)
	}
	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestConfigLayers(t *testing.T) {
	c := loadTestConfig(t, "--addr", ":9200")
	if c.Addr != ":9200" {
		t.Errorf("the command line should override the file, got addr %q", c.Addr)
	}
	if c.Metrics != "/metrics" {
		t.Errorf("the defaults should fill keys the file omits, got metrics %q", c.Metrics)
	}
	if c.RebootDelay != 10*time.Millisecond {
		t.Errorf("expected a 10ms reboot delay, got %v", c.RebootDelay)
	}
	if len(c.Modules) != 3 || c.Modules[1].Address != 0xD000 || c.Modules[2].Mode != "a24" {
		t.Errorf("unexpected modules %+v", c.Modules)
	}
}

func TestPrintconfRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmesrv.yml")
	if err := os.WriteFile(path, []byte(crateYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	k, err := setupconfig([]string{"--config", path})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := printconf(k, &buf); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "again.yml")
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	k2, err := setupconfig([]string{"--config", out})
	if err != nil {
		t.Fatal(err)
	}
	var a, b Config
	k.Unmarshal("", &a)
	k2.Unmarshal("", &b)
	if a.RebootDelay != b.RebootDelay || len(b.Modules) != 3 || b.Modules[1].Endpoint != "crate/adc/" {
		t.Errorf("config did not survive a conf round trip:\n%s", buf.String())
	}
}

func TestParseModules(t *testing.T) {
	tests := []struct {
		name string
		mods []ModuleSetup
	}{
		{"empty", nil},
		{"bad mode", []ModuleSetup{{Type: "v210", Mode: "a12", Name: "x"}}},
		{"no name", []ModuleSetup{{Type: "v210", Mode: "a16"}}},
		{"bad type", []ModuleSetup{{Type: "v240", Mode: "a16", Name: "x"}}},
		{"duplicate endpoint", []ModuleSetup{
			{Type: "v210", Mode: "a16", Name: "x", Address: 0xC000},
			{Type: "v280", Mode: "a24", Name: "y", Endpoint: "/x/", Address: 0x200000},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseModules(tt.mods); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func assemble(t *testing.T) *Crate {
	t.Helper()
	cr, err := Assemble(loadTestConfig(t), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cr.Close() })
	return cr
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestAssembleMountsEveryModule(t *testing.T) {
	cr := assemble(t)
	for _, path := range []string{"/rly/identity", "/crate/adc/identity", "/din/identity"} {
		if w := get(t, cr.Mux, path); w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d: %s", path, w.Code, w.Body.String())
		}
	}
	w := get(t, cr.Mux, "/endpoints")
	var graph map[string][]string
	if err := json.NewDecoder(w.Body).Decode(&graph); err != nil {
		t.Fatal(err)
	}
	for _, stem := range []string{"/rly", "/crate/adc", "/din"} {
		if len(graph[stem]) == 0 {
			t.Errorf("no endpoints listed for %s", stem)
		}
	}
}

func TestAssembleRejectsBadAddress(t *testing.T) {
	c := loadTestConfig(t)
	c.Modules[0].Address = 0xFFE1
	if _, err := Assemble(c, zap.NewNop()); err == nil {
		t.Error("a V210 above its ceiling should fail to assemble")
	}
}

func TestMetrics(t *testing.T) {
	cr := assemble(t)
	req := httptest.NewRequest(http.MethodPost, "/crate/adc/macro", strings.NewReader(`{"macro":"ps-test"}`))
	w := httptest.NewRecorder()
	cr.Mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := get(t, cr.Mux, "/metrics").Body.String()
	for _, want := range []string{
		`vme_macros_total{macro="ps-test",module="adc",result="ok"} 1`,
		`vme_v230_supply_volts{module="adc",supply="+5V"} 5`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics are missing %s", want)
		}
	}
}

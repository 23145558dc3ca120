package highland_test

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/golab-vme/generichttp/highland"
	"github.com/nasa-jpl/golab-vme/highland/v210"
	"github.com/nasa-jpl/golab-vme/highland/v230"
	"github.com/nasa-jpl/golab-vme/highland/v280"
	"github.com/nasa-jpl/golab-vme/server"
	"github.com/nasa-jpl/golab-vme/server/middleware/locker"
	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/sim"
)

type crate struct {
	router chi.Router
	v230   *highland.HTTPV230
	v280   *highland.HTTPV280
	lock   *locker.Locker
}

func mount(root chi.Router, stem string, h server.HTTPer, l *locker.Locker) {
	locker.Inject(h, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	h.RT().Bind(r)
	root.Mount(stem, r)
}

func setup(t *testing.T) *crate {
	t.Helper()
	bus := sim.New()
	v210.Simulate(bus, vme.A16, 0xC000)
	v230.Simulate(bus, v230.Module2, vme.A16, 0xD000, 2)
	v280.Simulate(bus, vme.A24, 0x200000, 0x800000000001, 1<<7, 2)
	rly, err := v210.New(bus, 0xC000, vme.A16, "rly")
	if err != nil {
		t.Fatal(err)
	}
	adc, err := v230.New(bus, v230.Module2, 0xD000, vme.A16, "adc")
	if err != nil {
		t.Fatal(err)
	}
	din, err := v280.New(bus, 0x200000, vme.A24, "din")
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Allocate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		rly.Close()
		adc.Close()
		din.Close()
	})
	c := &crate{
		router: chi.NewRouter(),
		v230:   highland.NewHTTPV230(adc, 0),
		v280:   highland.NewHTTPV280(din),
		lock:   locker.New(),
	}
	mount(c.router, "/rly", highland.NewHTTPV210(rly, 0), locker.New())
	mount(c.router, "/adc", c.v230, c.lock)
	mount(c.router, "/din", c.v280, locker.New())
	return c
}

func (c *crate) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestV210Relays(t *testing.T) {
	c := setup(t)
	if w := c.do(t, http.MethodPost, "/rly/relays", `{"uint":4294967296}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := c.do(t, http.MethodPost, "/rly/relay/3", `{"bool":true}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var mask server.UintT
	decode(t, c.do(t, http.MethodGet, "/rly/contacts", ""), &mask)
	if mask.Uint != 1<<32|1<<3 {
		t.Errorf("expected relays 3 and 32 closed, got 0x%X", mask.Uint)
	}
	if w := c.do(t, http.MethodPost, "/rly/relay/64", `{"bool":true}`); w.Code != http.StatusBadRequest {
		t.Errorf("channel 64 should be a bad request, got %d", w.Code)
	}
	if w := c.do(t, http.MethodPost, "/rly/relay/x", `{"bool":true}`); w.Code != http.StatusBadRequest {
		t.Errorf("a non-numeric channel should be a bad request, got %d", w.Code)
	}
}

func TestV230ChannelRoundTrip(t *testing.T) {
	c := setup(t)
	w := c.do(t, http.MethodPost, "/adc/channel/40/config", `{"range":3,"filter":1,"enable":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var cfg v230.ChannelConfig
	decode(t, c.do(t, http.MethodGet, "/adc/channel/40/config", ""), &cfg)
	if cfg.Range != v230.Range3 || cfg.Filter != v230.Filter200Hz || !cfg.Enable {
		t.Errorf("unexpected config %+v", cfg)
	}
	var f server.FloatT
	decode(t, c.do(t, http.MethodGet, "/adc/channel/40/voltage", ""), &f)
	if math.Abs(f.F64-v230.SimulatedInput(40)) > 1e-3 {
		t.Errorf("expected %f V, got %f", v230.SimulatedInput(40), f.F64)
	}
	w = c.do(t, http.MethodPost, "/adc/channel/40/config", `{"range":0,"filter":0,"enable":true}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("an unknown range should be a bad request, got %d", w.Code)
	}
}

func TestV230Voltages(t *testing.T) {
	c := setup(t)
	for ch := 0; ch < v230.Channels; ch++ {
		body, _ := json.Marshal(v230.ChannelConfig{Range: v230.Range3, Enable: true})
		c.do(t, http.MethodPost, "/adc/channel/"+strconv.Itoa(ch)+"/config", string(body))
	}
	var volts []float64
	decode(t, c.do(t, http.MethodGet, "/adc/voltages", ""), &volts)
	if len(volts) != v230.Channels {
		t.Fatalf("expected %d voltages, got %d", v230.Channels, len(volts))
	}
	for ch, v := range volts {
		if math.Abs(v-v230.SimulatedInput(ch)) > 1e-3 {
			t.Errorf("channel %d: expected %f got %f", ch, v230.SimulatedInput(ch), v)
		}
	}
}

func TestV230Macros(t *testing.T) {
	c := setup(t)
	var seen []string
	c.v230.Observe = func(name string, err error) { seen = append(seen, name) }
	if w := c.do(t, http.MethodPost, "/adc/macro", `{"macro":"full-bist"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var busy server.BoolT
	decode(t, c.do(t, http.MethodGet, "/adc/macro-busy", ""), &busy)
	if busy.Bool {
		t.Error("the module should be idle once the macro route returns")
	}
	var res v230.ChannelBIST
	decode(t, c.do(t, http.MethodPost, "/adc/channel/5/test", ""), &res)
	if res.Measurements[0] != 501 {
		t.Errorf("expected the first measurement of channel 5 to be 501, got %d", res.Measurements[0])
	}
	if w := c.do(t, http.MethodPost, "/adc/macro", `{"macro":"self-destruct"}`); w.Code != http.StatusBadRequest {
		t.Errorf("an unknown macro should be a bad request, got %d", w.Code)
	}
	if len(seen) != 2 || seen[0] != "full-bist" || seen[1] != "channel-test" {
		t.Errorf("unexpected observed macros %v", seen)
	}
}

func TestV230Mode(t *testing.T) {
	c := setup(t)
	if w := c.do(t, http.MethodPost, "/adc/mode", `{"str":"bist"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var s server.StrT
	decode(t, c.do(t, http.MethodGet, "/adc/mode", ""), &s)
	if s.Str != "bist" {
		t.Errorf("expected bist, got %q", s.Str)
	}
}

func TestLock(t *testing.T) {
	c := setup(t)
	c.do(t, http.MethodPost, "/adc/lock", `{"bool":true}`)
	if w := c.do(t, http.MethodGet, "/adc/htest", ""); w.Code != http.StatusLocked {
		t.Errorf("expected 423 while locked, got %d", w.Code)
	}
	if w := c.do(t, http.MethodGet, "/din/inputs", ""); w.Code != http.StatusOK {
		t.Errorf("locking one module should not lock another, got %d", w.Code)
	}
	c.do(t, http.MethodPost, "/adc/lock", `{"bool":false}`)
	var h server.IntT
	decode(t, c.do(t, http.MethodGet, "/adc/htest", ""), &h)
	if h.Int != v230.HTestPattern {
		t.Errorf("expected 0x%04X, got 0x%04X", v230.HTestPattern, h.Int)
	}
}

func TestV280(t *testing.T) {
	c := setup(t)
	var in server.UintT
	decode(t, c.do(t, http.MethodGet, "/din/inputs", ""), &in)
	if in.Uint != 0x800000000001 {
		t.Errorf("unexpected inputs 0x%X", in.Uint)
	}
	var b server.BoolT
	decode(t, c.do(t, http.MethodGet, "/din/channel/47/input", ""), &b)
	if !b.Bool {
		t.Error("channel 47 should be high")
	}
	if w := c.do(t, http.MethodPost, "/din/buffer/128", `{"int":1}`); w.Code != http.StatusBadRequest {
		t.Errorf("buffer index 128 should be a bad request, got %d", w.Code)
	}
	if w := c.do(t, http.MethodPost, "/din/bist", ""); w.Code != http.StatusBadGateway {
		t.Errorf("a failing self test should reply 502, got %d", w.Code)
	}
	decode(t, c.do(t, http.MethodGet, "/din/bist/errors", ""), &in)
	if in.Uint != 1<<7 {
		t.Errorf("expected channel 7 to fail, got 0x%X", in.Uint)
	}
}

func TestConcurrentRequestsAreSerialized(t *testing.T) {
	c := setup(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.do(t, http.MethodPost, "/adc/uled", `{"int":`+strconv.Itoa(i)+`}`)
			c.do(t, http.MethodGet, "/adc/voltages", "")
		}(i)
	}
	wg.Wait()
}

func TestEndpoints(t *testing.T) {
	c := setup(t)
	var eps []string
	decode(t, c.do(t, http.MethodGet, "/din/endpoints", ""), &eps)
	found := false
	for _, e := range eps {
		if e == "/bist" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected /bist among %v", eps)
	}
}

package highland

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/nasa-jpl/golab-vme/generichttp"
	"github.com/nasa-jpl/golab-vme/highland/v230"
	"github.com/nasa-jpl/golab-vme/server"
	"github.com/nasa-jpl/golab-vme/vme"
	"golang.org/x/time/rate"
)

// macroNames maps the names accepted by POST /macro to opcodes
var macroNames = map[string]v230.MacroCode{
	"noop":      v230.NoOp,
	"full-bist": v230.FullBIST,
	"reboot":    v230.Reboot,
	"ps-test":   v230.PSTest,
}

// V230Identity is the identity and calibration block of a V230
type V230Identity struct {
	Variant      string `json:"variant"`
	Manufacturer uint16 `json:"manufacturer"`
	Type         uint16 `json:"type"`
	Serial       uint16 `json:"serial"`
	ROMID        uint16 `json:"romId"`
	ROMRevision  uint16 `json:"romRevision"`
	Dash         uint16 `json:"dash"`
	CalID        uint16 `json:"calId"`
	CalDate      string `json:"calDate"`
}

// ChannelError is the setup error register of a V230
type ChannelError struct {
	Channel int  `json:"channel"`
	InError bool `json:"inError"`
}

type macroRequest struct {
	Macro string `json:"macro"`
}

// HTTPV230 wraps a V230 in an HTTP route table
type HTTPV230 struct {
	mu   sync.Mutex
	scan *rate.Limiter

	// Dev is the underlying analog input module
	Dev *v230.V230

	// Observe, if not nil, is called after every macro with its name and result
	Observe func(macro string, err error)

	// RouteTable maps URLs to functions
	RouteTable server.RouteTable
}

// NewHTTPV230 returns a new HTTP wrapper around a bound analog input module.
// Bulk voltage scans are limited to scanRate per second; zero or less does
// not limit them.
func NewHTTPV230(dev *v230.V230, scanRate float64) *HTTPV230 {
	lim := rate.NewLimiter(rate.Inf, 1)
	if scanRate > 0 {
		lim = rate.NewLimiter(rate.Limit(scanRate), 1)
	}
	h := &HTTPV230{Dev: dev, scan: lim}
	rt := server.RouteTable{}
	rt[server.MethodPath{Method: http.MethodGet, Path: "/identity"}] = generichttp.GetJSON(h.identity)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/cal-date"}] = generichttp.GetString(dev.CalDate)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/htest"}] = generichttp.GetUint16(dev.HTest)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/utest"}] = generichttp.GetUint16(dev.UTest)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/utest"}] = generichttp.SetUint16(dev.SetUTest)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/uled"}] = generichttp.GetUint16(dev.ULED)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/uled"}] = generichttp.SetUint16(dev.SetULED)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/mcount"}] = generichttp.GetUint16(dev.MCount)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/scan-count"}] = generichttp.GetUint16(dev.ScanCount)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/channel/{ch}/config"}] = h.channelConfig
	rt[server.MethodPath{Method: http.MethodPost, Path: "/channel/{ch}/config"}] = h.setChannelConfig
	rt[server.MethodPath{Method: http.MethodGet, Path: "/channel/{ch}/voltage"}] = h.voltage
	rt[server.MethodPath{Method: http.MethodPost, Path: "/channel/{ch}/test"}] = h.channelTest
	rt[server.MethodPath{Method: http.MethodGet, Path: "/channel-in-error"}] = generichttp.GetJSON(h.channelInError)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/macro"}] = h.macro
	rt[server.MethodPath{Method: http.MethodGet, Path: "/macro-busy"}] = generichttp.GetBool(dev.MacroBusy)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/scan-fast"}] = generichttp.GetBool(dev.ScanFast)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/scan-fast"}] = generichttp.SetBool(dev.SetScanFast)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/mode"}] = generichttp.GetString(h.mode)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/mode"}] = generichttp.SetString(h.setMode)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/relay-config"}] = generichttp.GetJSON(dev.RelayConfig)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/relay-config"}] = generichttp.SetJSON(dev.SetRelayConfig)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/bist"}] = generichttp.GetJSON(dev.FullBISTResults)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/bist/errors"}] = generichttp.GetUint16(dev.BISTErrorCount)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/bist/channel"}] = generichttp.GetJSON(dev.ChannelBISTResults)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/bist/mux"}] = generichttp.GetJSON(dev.BMux)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/bist/mux"}] = generichttp.SetJSON(dev.SetBMux)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/power-supplies"}] = generichttp.GetJSON(dev.PowerSupplies)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/region"}] = generichttp.GetString(func() (string, error) { return dev.String(), nil })
	serialize(&h.mu, rt)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/voltages"}] = h.voltages
	h.RouteTable = rt
	return h
}

// RT satisfies the server.HTTPer interface
func (h *HTTPV230) RT() server.RouteTable {
	return h.RouteTable
}

// Locked calls fcn while holding the module lock, for callers outside HTTP
// such as metrics collectors
func (h *HTTPV230) Locked(fcn func(*v230.V230)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fcn(h.Dev)
}

func (h *HTTPV230) identity() (V230Identity, error) {
	var rd reader
	id := V230Identity{
		Variant:      h.Dev.Variant().Name,
		Manufacturer: rd.u16(h.Dev.VXIManufacturer),
		Type:         rd.u16(h.Dev.VXIType),
		Serial:       rd.u16(h.Dev.Serial),
		ROMID:        rd.u16(h.Dev.ROMID),
		ROMRevision:  rd.u16(h.Dev.ROMRevision),
		Dash:         rd.u16(h.Dev.Dash),
		CalID:        rd.u16(h.Dev.CalID),
		CalDate:      rd.str(h.Dev.CalDate),
	}
	return id, rd.err
}

func (h *HTTPV230) voltages(w http.ResponseWriter, r *http.Request) {
	generichttp.GetJSON(func() ([v230.Channels]float64, error) { return h.Scan(r.Context()) })(w, r)
}

func (h *HTTPV230) channelInError() (ChannelError, error) {
	ch, ok, err := h.Dev.ChannelInError()
	return ChannelError{Channel: ch, InError: ok}, err
}

func (h *HTTPV230) mode() (string, error) {
	m, err := h.Dev.Mode()
	return v230.FormatMode(m), err
}

func (h *HTTPV230) setMode(s string) error {
	m, err := v230.ValidateMode(s)
	if err != nil {
		return err
	}
	return h.Dev.SetMode(m)
}

func (h *HTTPV230) channelConfig(w http.ResponseWriter, r *http.Request) {
	ch, err := urlInt(r, "ch")
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	generichttp.GetJSON(func() (v230.ChannelConfig, error) { return h.Dev.ChannelConfig(ch) })(w, r)
}

func (h *HTTPV230) setChannelConfig(w http.ResponseWriter, r *http.Request) {
	ch, err := urlInt(r, "ch")
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	generichttp.SetJSON(func(c v230.ChannelConfig) error { return h.Dev.SetChannelConfig(ch, c) })(w, r)
}

func (h *HTTPV230) voltage(w http.ResponseWriter, r *http.Request) {
	ch, err := urlInt(r, "ch")
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	generichttp.GetFloat(func() (float64, error) { return h.Dev.Voltage(ch) })(w, r)
}

func (h *HTTPV230) observe(name string, err error) {
	if h.Observe != nil {
		h.Observe(name, err)
	}
}

func (h *HTTPV230) channelTest(w http.ResponseWriter, r *http.Request) {
	ch, err := urlInt(r, "ch")
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	err = h.Dev.ChannelTest(ch)
	if err == nil {
		err = h.Dev.WaitMacro(r.Context())
	}
	h.observe("channel-test", err)
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	generichttp.GetJSON(h.Dev.ChannelBISTResults)(w, r)
}

func (h *HTTPV230) macro(w http.ResponseWriter, r *http.Request) {
	var req macroRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	name := strings.ToLower(req.Macro)
	code, ok := macroNames[name]
	if !ok {
		generichttp.Fail(w, fmt.Errorf("%w: macro %q, must be a member of {noop, full-bist, reboot, ps-test}", vme.ErrInvalidArgument, req.Macro))
		return
	}
	err := h.Dev.ExecuteMacro(r.Context(), code)
	if err == nil && code != v230.Reboot && code != v230.NoOp {
		err = h.Dev.WaitMacro(r.Context())
	}
	h.observe(name, err)
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Scan waits for the scan limiter, then reads every channel.  The limiter
// is waited on before the module lock is taken.
func (h *HTTPV230) Scan(ctx context.Context) ([v230.Channels]float64, error) {
	if err := h.scan.Wait(ctx); err != nil {
		return [v230.Channels]float64{}, fmt.Errorf("waiting to scan: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Dev.Voltages()
}

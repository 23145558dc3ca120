package highland

import (
	"net/http"
	"sync"

	"github.com/nasa-jpl/golab-vme/generichttp"
	"github.com/nasa-jpl/golab-vme/highland/v280"
	"github.com/nasa-jpl/golab-vme/server"
)

// V280Identity is the identity and calibration block of a V280
type V280Identity struct {
	Manufacturer     uint16 `json:"manufacturer"`
	Type             uint16 `json:"type"`
	HardwareRevision uint16 `json:"hardwareRevision"`
	Serial           uint16 `json:"serial"`
	ROMID            uint16 `json:"romId"`
	ROMRevision      uint16 `json:"romRevision"`
	Dash             uint16 `json:"dash"`
	CalID            uint16 `json:"calId"`
	CalDate          string `json:"calDate"`
}

// HTTPV280 wraps a V280 in an HTTP route table
type HTTPV280 struct {
	mu sync.Mutex

	// Dev is the underlying digital input module
	Dev *v280.V280

	// Observe, if not nil, is called after every self test with its result
	Observe func(macro string, err error)

	// RouteTable maps URLs to functions
	RouteTable server.RouteTable
}

// NewHTTPV280 returns a new HTTP wrapper around a bound digital input module
func NewHTTPV280(dev *v280.V280) *HTTPV280 {
	h := &HTTPV280{Dev: dev}
	rt := server.RouteTable{}
	rt[server.MethodPath{Method: http.MethodGet, Path: "/identity"}] = generichttp.GetJSON(h.identity)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/cal-date"}] = generichttp.GetString(dev.CalDate)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/uled"}] = generichttp.GetUint16(dev.ULED)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/uled"}] = generichttp.SetUint16(dev.SetULED)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/inputs"}] = generichttp.GetUint(dev.Inputs)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/channel/{ch}/input"}] = h.input
	rt[server.MethodPath{Method: http.MethodGet, Path: "/channel/{ch}/rise-delay"}] = h.delay(dev.RiseDelay)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/channel/{ch}/rise-delay"}] = h.setDelay(dev.SetRiseDelay)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/channel/{ch}/fall-delay"}] = h.delay(dev.FallDelay)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/channel/{ch}/fall-delay"}] = h.setDelay(dev.SetFallDelay)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/buffer/{index}"}] = h.readBuffer
	rt[server.MethodPath{Method: http.MethodPost, Path: "/buffer/{index}"}] = h.writeBuffer
	rt[server.MethodPath{Method: http.MethodGet, Path: "/macro-busy"}] = generichttp.GetBool(dev.MacroBusy)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/bist"}] = h.bist
	rt[server.MethodPath{Method: http.MethodGet, Path: "/bist/errors"}] = generichttp.GetUint(dev.BISTErrors)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/region"}] = generichttp.GetString(func() (string, error) { return dev.String(), nil })
	serialize(&h.mu, rt)
	h.RouteTable = rt
	return h
}

// RT satisfies the server.HTTPer interface
func (h *HTTPV280) RT() server.RouteTable {
	return h.RouteTable
}

func (h *HTTPV280) identity() (V280Identity, error) {
	var rd reader
	id := V280Identity{
		Manufacturer:     rd.u16(h.Dev.VXIManufacturer),
		Type:             rd.u16(h.Dev.VXIType),
		HardwareRevision: rd.u16(h.Dev.HardwareRevision),
		Serial:           rd.u16(h.Dev.Serial),
		ROMID:            rd.u16(h.Dev.ROMID),
		ROMRevision:      rd.u16(h.Dev.ROMRevision),
		Dash:             rd.u16(h.Dev.Dash),
		CalID:            rd.u16(h.Dev.CalID),
		CalDate:          rd.str(h.Dev.CalDate),
	}
	return id, rd.err
}

func (h *HTTPV280) input(w http.ResponseWriter, r *http.Request) {
	ch, err := urlInt(r, "ch")
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	generichttp.GetBool(func() (bool, error) { return h.Dev.Input(ch) })(w, r)
}

func (h *HTTPV280) delay(get func(int) (uint16, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := urlInt(r, "ch")
		if err != nil {
			generichttp.Fail(w, err)
			return
		}
		generichttp.GetUint16(func() (uint16, error) { return get(ch) })(w, r)
	}
}

func (h *HTTPV280) setDelay(set func(int, uint16) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := urlInt(r, "ch")
		if err != nil {
			generichttp.Fail(w, err)
			return
		}
		generichttp.SetUint16(func(d uint16) error { return set(ch, d) })(w, r)
	}
}

func (h *HTTPV280) readBuffer(w http.ResponseWriter, r *http.Request) {
	i, err := urlInt(r, "index")
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	generichttp.GetUint16(func() (uint16, error) { return h.Dev.ReadBuffer(i) })(w, r)
}

func (h *HTTPV280) writeBuffer(w http.ResponseWriter, r *http.Request) {
	i, err := urlInt(r, "index")
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	generichttp.SetUint16(func(v uint16) error { return h.Dev.WriteBuffer(i, v) })(w, r)
}

// bist runs the self test.  A test that found faults replies 502 with the
// failing channels available from /bist/errors.
func (h *HTTPV280) bist(w http.ResponseWriter, r *http.Request) {
	err := h.Dev.RunBIST(r.Context())
	if h.Observe != nil {
		h.Observe("bist", err)
	}
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

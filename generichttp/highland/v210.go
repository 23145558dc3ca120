package highland

import (
	"net/http"
	"sync"
	"time"

	"github.com/nasa-jpl/golab-vme/generichttp"
	"github.com/nasa-jpl/golab-vme/highland/v210"
	"github.com/nasa-jpl/golab-vme/server"
)

// V210Identity is the identity block of a V210
type V210Identity struct {
	BoardID      uint16 `json:"boardId"`
	Manufacturer uint16 `json:"manufacturer"`
	Type         uint16 `json:"type"`
	FPGARevision uint16 `json:"fpgaRevision"`
}

// V210Drivers is the state of the relay drivers
type V210Drivers struct {
	P4TM bool `json:"p4tm"`
	P3TM bool `json:"p3tm"`
}

// HTTPV210 wraps a V210 in an HTTP route table
type HTTPV210 struct {
	mu sync.Mutex

	// Dev is the underlying relay module
	Dev *v210.V210

	// Settle is waited before relay readback
	Settle time.Duration

	// RouteTable maps URLs to functions
	RouteTable server.RouteTable
}

// NewHTTPV210 returns a new HTTP wrapper around a bound relay module
func NewHTTPV210(dev *v210.V210, settle time.Duration) *HTTPV210 {
	h := &HTTPV210{Dev: dev, Settle: settle}
	rt := server.RouteTable{}
	rt[server.MethodPath{Method: http.MethodGet, Path: "/identity"}] = generichttp.GetJSON(h.identity)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/relays"}] = generichttp.GetUint(func() (uint64, error) { return dev.Relays(h.Settle) })
	rt[server.MethodPath{Method: http.MethodPost, Path: "/relays"}] = generichttp.SetUint(dev.SetRelays)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/relay/{ch}"}] = h.setRelay
	rt[server.MethodPath{Method: http.MethodGet, Path: "/contacts"}] = generichttp.GetUint(func() (uint64, error) { return dev.Contacts(h.Settle) })
	rt[server.MethodPath{Method: http.MethodGet, Path: "/error-led"}] = generichttp.GetBool(dev.ErrorLED)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/error-led"}] = generichttp.SetBool(dev.SetErrorLED)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/drivers"}] = generichttp.GetJSON(h.drivers)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/drivers"}] = generichttp.SetBool(func(on bool) error {
		if on {
			return dev.EnableDrivers()
		}
		return dev.DisableDrivers()
	})
	rt[server.MethodPath{Method: http.MethodGet, Path: "/region"}] = generichttp.GetString(func() (string, error) { return dev.String(), nil })
	serialize(&h.mu, rt)
	h.RouteTable = rt
	return h
}

// RT satisfies the server.HTTPer interface
func (h *HTTPV210) RT() server.RouteTable {
	return h.RouteTable
}

func (h *HTTPV210) identity() (V210Identity, error) {
	var rd reader
	id := V210Identity{
		BoardID:      rd.u16(h.Dev.BoardID),
		Manufacturer: rd.u16(h.Dev.VXIManufacturer),
		Type:         rd.u16(h.Dev.VXIType),
		FPGARevision: rd.u16(h.Dev.FPGARevision),
	}
	return id, rd.err
}

func (h *HTTPV210) drivers() (V210Drivers, error) {
	p4, err := h.Dev.P4TMEnabled()
	if err != nil {
		return V210Drivers{}, err
	}
	p3, err := h.Dev.P3TMEnabled()
	return V210Drivers{P4TM: p4, P3TM: p3}, err
}

func (h *HTTPV210) setRelay(w http.ResponseWriter, r *http.Request) {
	ch, err := urlInt(r, "ch")
	if err != nil {
		generichttp.Fail(w, err)
		return
	}
	generichttp.SetBool(func(closed bool) error { return h.Dev.SetRelay(ch, closed) })(w, r)
}

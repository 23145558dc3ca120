package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nasa-jpl/golab-vme/generichttp/highland"
	"github.com/nasa-jpl/golab-vme/highland/v210"
	"github.com/nasa-jpl/golab-vme/highland/v230"
	"github.com/nasa-jpl/golab-vme/highland/v280"
	"github.com/nasa-jpl/golab-vme/server"
	"github.com/nasa-jpl/golab-vme/server/middleware/locker"
	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/sim"
)

// Crate is an assembled server: every configured module bound on one bus
// and mounted on one router
type Crate struct {
	// Mux serves every module, /endpoints and the metrics
	Mux chi.Router

	// Registry holds the crate metrics
	Registry *prometheus.Registry

	bus     vme.Bus
	closers []io.Closer
}

// Close releases every module region, then the bus
func (c *Crate) Close() error {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i].Close()
	}
	c.closers = nil
	return c.bus.Close()
}

type module struct {
	setup ModuleSetup
	mode  vme.AddrMode
	typ   string
}

// parseModules checks the module list before anything touches the bus
func parseModules(setups []ModuleSetup) ([]module, error) {
	if len(setups) == 0 {
		return nil, fmt.Errorf("no modules configured")
	}
	seen := map[string]bool{}
	mods := make([]module, 0, len(setups))
	for _, s := range setups {
		mode, err := vme.ParseAddrMode(s.Mode)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", s.Name, err)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("module at 0x%X has no name", s.Address)
		}
		if s.Endpoint == "" {
			s.Endpoint = s.Name
		}
		s.Endpoint = server.SubMuxSanitize(s.Endpoint)
		if seen[s.Endpoint] {
			return nil, fmt.Errorf("endpoint %s is used by more than one module", s.Endpoint)
		}
		seen[s.Endpoint] = true
		typ := strings.ToLower(s.Type)
		switch typ {
		case "v210", "v230", "v230-2", "v230-21", "v280":
		default:
			return nil, fmt.Errorf("module %q: type %q not understood", s.Name, s.Type)
		}
		mods = append(mods, module{setup: s, mode: mode, typ: typ})
	}
	return mods, nil
}

func variant(typ string) vme.Module {
	m, _ := v230.Variant(strings.ToUpper(typ))
	return m
}

// simulate plugs a simulated module into c for every configured module
func simulate(c *sim.Crate, mods []module) {
	for _, m := range mods {
		addr := m.setup.Address
		switch m.typ {
		case "v210":
			v210.Simulate(c, m.mode, addr)
		case "v280":
			v280.Simulate(c, m.mode, addr, 0, 0, 3)
		default:
			v230.Simulate(c, variant(m.typ), m.mode, addr, 3)
		}
	}
}

// Assemble opens the bus, binds every module and builds the router.  On
// failure everything already bound is released.
func Assemble(c Config, lg *zap.Logger) (*Crate, error) {
	mods, err := parseModules(c.Modules)
	if err != nil {
		return nil, err
	}
	bus, err := openBus(c.Bus, mods, lg)
	if err != nil {
		return nil, err
	}
	cr := &Crate{bus: bus, Registry: prometheus.NewRegistry()}
	root := chi.NewRouter()
	root.Use(middleware.Recoverer, requestLogger(lg))
	cr.Mux = root

	macros := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vme",
		Name:      "macros_total",
		Help:      "macros run through the HTTP interface, by module and result",
	}, []string{"module", "macro", "result"})
	cr.Registry.MustRegister(macros)

	var (
		httpers = make([]server.HTTPer, 0, len(mods))
		gauges  []prometheus.Collector
	)
	for _, m := range mods {
		s := m.setup
		mlog := lg.With(zap.String("module", s.Name))
		var h server.HTTPer
		switch m.typ {
		case "v210":
			dev, err := v210.New(bus, s.Address, m.mode, s.Name, vme.WithLogger(mlog))
			if err != nil {
				cr.Close()
				return nil, err
			}
			cr.closers = append(cr.closers, dev)
			h = highland.NewHTTPV210(dev, c.Settle)
		case "v280":
			dev, err := v280.New(bus, s.Address, m.mode, s.Name,
				v280.WithLogger(mlog), v280.WithPollInterval(c.PollInterval))
			if err != nil {
				cr.Close()
				return nil, err
			}
			cr.closers = append(cr.closers, dev)
			hv := highland.NewHTTPV280(dev)
			hv.Observe = observer(macros, s.Name)
			h = hv
		default:
			dev, err := v230.New(bus, variant(m.typ), s.Address, m.mode, s.Name,
				v230.WithLogger(mlog), v230.WithPollInterval(c.PollInterval), v230.WithRebootDelay(c.RebootDelay))
			if err != nil {
				cr.Close()
				return nil, err
			}
			cr.closers = append(cr.closers, dev)
			hv := highland.NewHTTPV230(dev, c.ScanRate)
			hv.Observe = observer(macros, s.Name)
			if dev.Variant().Has(v230.CapPowerStatus) {
				gauges = append(gauges, supplyGauges(hv, s.Name)...)
			}
			h = hv
		}
		httpers = append(httpers, h)
	}
	if err := bus.Allocate(); err != nil {
		cr.Close()
		return nil, fmt.Errorf("allocating regions: %w", err)
	}
	cr.Registry.MustRegister(gauges...)

	supergraph := map[string][]string{}
	for i, m := range mods {
		h := httpers[i]
		l := locker.New()
		locker.Inject(h, l)
		supergraph[m.setup.Endpoint] = h.RT().Endpoints()

		r := chi.NewRouter()
		r.Use(l.Check)
		h.RT().Bind(r)
		root.Mount(m.setup.Endpoint, r)
		lg.Info("mounted module",
			zap.String("module", m.setup.Name),
			zap.String("type", m.typ),
			zap.String("endpoint", m.setup.Endpoint))
	}
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	if c.Metrics != "" {
		root.Handle(c.Metrics, promhttp.HandlerFor(cr.Registry, promhttp.HandlerOpts{}))
	}
	return cr, nil
}

// requestLogger logs every request with its status and latency
func requestLogger(lg *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			lg.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}

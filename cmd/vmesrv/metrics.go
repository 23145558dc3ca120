package main

import (
	"errors"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nasa-jpl/golab-vme/generichttp/highland"
	"github.com/nasa-jpl/golab-vme/highland/v230"
	"github.com/nasa-jpl/golab-vme/vme"
)

// result classifies the outcome of a macro for the macros_total counter
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, vme.ErrMacroBusy):
		return "busy"
	case errors.Is(err, vme.ErrMacroFailed):
		return "failed"
	default:
		return "error"
	}
}

func observer(c *prometheus.CounterVec, module string) func(string, error) {
	return func(macro string, err error) {
		c.WithLabelValues(module, macro, result(err)).Inc()
	}
}

// supplyGauges returns one gauge per power supply of a V230.  Each scrape
// reads the telemetry registers under the module lock; a failed read
// reports NaN.
func supplyGauges(h *highland.HTTPV230, module string) []prometheus.Collector {
	out := make([]prometheus.Collector, 0, v230.NumSupplies)
	for i := 0; i < v230.NumSupplies; i++ {
		supply := v230.Supply(i)
		out = append(out, prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   "vme",
				Subsystem:   "v230",
				Name:        "supply_volts",
				Help:        "power supply telemetry of a V230",
				ConstLabels: prometheus.Labels{"module": module, "supply": supply.String()},
			},
			func() float64 {
				v := math.NaN()
				h.Locked(func(dev *v230.V230) {
					ps, err := dev.PowerSupplies()
					if err == nil {
						v = ps[supply].Voltage
					}
				})
				return v
			}))
	}
	return out
}

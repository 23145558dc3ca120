//go:build !linux
// +build !linux

package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/sim"
)

func openBus(b BusSetup, mods []module, lg *zap.Logger) (vme.Bus, error) {
	if b.Kind != "sim" {
		return nil, fmt.Errorf("%w: bus kind %q needs linux, only sim is available", vme.ErrUnsupported, b.Kind)
	}
	c := sim.New()
	simulate(c, mods)
	return c, nil
}

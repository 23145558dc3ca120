//go:build linux
// +build linux

package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/mmap"
	"github.com/nasa-jpl/golab-vme/vme/sim"
)

func openBus(b BusSetup, mods []module, lg *zap.Logger) (vme.Bus, error) {
	switch b.Kind {
	case "sim":
		c := sim.New()
		simulate(c, mods)
		return c, nil
	case "mmap", "":
		path := b.Device
		if path == "" {
			path = mmap.DevicePath(b.Controller)
		}
		return mmap.Open(path, mmap.WithSwap(b.Swap), mmap.WithLogger(lg))
	default:
		return nil, fmt.Errorf("bus kind %q, must be a member of {sim, mmap}", b.Kind)
	}
}

//go:build linux
// +build linux

package bench

import (
	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/mmap"
	"go.uber.org/zap"
)

func openMapped(s Setup, log *zap.Logger) (vme.Bus, error) {
	path := s.Device
	if path == "" {
		path = mmap.DevicePath(s.ControllerID)
	}
	return mmap.Open(path, mmap.WithLogger(log))
}

//go:build !linux
// +build !linux

package bench

import (
	"fmt"

	"github.com/nasa-jpl/golab-vme/vme"
	"go.uber.org/zap"
)

func openMapped(s Setup, log *zap.Logger) (vme.Bus, error) {
	return nil, fmt.Errorf("%w: the mmap bus needs linux", vme.ErrUnsupported)
}

//go:build !linux

package system

import (
	"fmt"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// Memory is not supported on this platform. Callers treat the error as
// no memory pressure.
func (MemoryProbe) Memory() (available, total uint64, err error) {
	return 0, 0, fmt.Errorf("memory probe: %w", domain.ErrNotImplemented)
}

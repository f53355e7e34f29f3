// Package system reports host resources used for worker admission.
package system

import "github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"

// Ensure MemoryProbe implements the interface.
var _ driven.MemoryProbe = MemoryProbe{}

// MemoryProbe reads physical memory from the operating system.
type MemoryProbe struct{}

// FreeRatio returns available/total from p, or an error.
func FreeRatio(p driven.MemoryProbe) (float64, error) {
	available, total, err := p.Memory()
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return float64(available) / float64(total), nil
}

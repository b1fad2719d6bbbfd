//go:build !linux

package audio

import (
	"context"

	"cuecard/internal/domain"
)

// PulseEnumerator is unavailable off Linux; callers degrade to the default
// input.
type PulseEnumerator struct{}

func NewPulseEnumerator() *PulseEnumerator {
	return &PulseEnumerator{}
}

func (e *PulseEnumerator) Sources(context.Context) ([]domain.AudioDevice, error) {
	return nil, domain.ErrCapabilityUnsupported
}

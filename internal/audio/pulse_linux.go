//go:build linux

package audio

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse"

	"cuecard/internal/domain"
)

// PulseEnumerator lists PulseAudio sources, both inputs and sink monitors.
type PulseEnumerator struct{}

func NewPulseEnumerator() *PulseEnumerator {
	return &PulseEnumerator{}
}

// Sources opens a short-lived client per call so a restarted audio server
// is picked up on the next poll.
func (e *PulseEnumerator) Sources(ctx context.Context) ([]domain.AudioDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("%w: pulse: %v", domain.ErrCapabilityUnsupported, err)
	}
	defer client.Close()

	sources, err := client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	devices := make([]domain.AudioDevice, 0, len(sources))
	for _, s := range sources {
		devices = append(devices, describeSource(s.ID(), s.Name()))
	}
	return devices, nil
}

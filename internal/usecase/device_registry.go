package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cuecard/internal/domain"
	"cuecard/internal/ports"
)

// DeviceListener receives the input devices after every change.
type DeviceListener func(devices []domain.AudioDevice, supported bool)

// DeviceRegistry tracks the available audio inputs. Enumeration failures
// degrade to an empty list and an unsupported flag instead of errors.
type DeviceRegistry struct {
	enumerator ports.DeviceEnumerator
	log        zerolog.Logger

	mu        sync.Mutex
	devices   []domain.AudioDevice
	supported bool
	listeners []DeviceListener
}

func NewDeviceRegistry(enumerator ports.DeviceEnumerator, log zerolog.Logger) *DeviceRegistry {
	return &DeviceRegistry{
		enumerator: enumerator,
		log:        log.With().Str("component", "devices").Logger(),
	}
}

// ListInputDevices re-enumerates and returns the current input devices.
func (r *DeviceRegistry) ListInputDevices(ctx context.Context) []domain.AudioDevice {
	r.refresh(ctx)
	return r.Devices()
}

// Devices returns the last enumerated input devices.
func (r *DeviceRegistry) Devices() []domain.AudioDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AudioDevice(nil), r.devices...)
}

// Supported reports whether the last enumeration succeeded.
func (r *DeviceRegistry) Supported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supported
}

// OnDeviceChange registers cb to run whenever the device set changes.
func (r *DeviceRegistry) OnDeviceChange(cb DeviceListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, cb)
}

// Resolve returns deviceID when it is currently present, otherwise the
// system default.
func (r *DeviceRegistry) Resolve(deviceID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.ID == deviceID {
			return deviceID
		}
	}
	return domain.DefaultDeviceID
}

// Watch polls the enumerator until ctx is done.
func (r *DeviceRegistry) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *DeviceRegistry) refresh(ctx context.Context) {
	var (
		inputs    []domain.AudioDevice
		supported bool
	)
	if r.enumerator != nil {
		sources, err := r.enumerator.Sources(ctx)
		if err != nil {
			r.log.Debug().Err(err).Msg("device enumeration unavailable")
		} else {
			supported = true
			for _, s := range sources {
				if s.Kind == domain.DeviceKindInput {
					inputs = append(inputs, s)
				}
			}
		}
	}

	r.mu.Lock()
	changed := supported != r.supported || !sameDevices(inputs, r.devices)
	r.devices = inputs
	r.supported = supported
	listeners := append([]DeviceListener(nil), r.listeners...)
	r.mu.Unlock()

	if !changed {
		return
	}
	r.log.Info().Int("count", len(inputs)).Bool("supported", supported).Msg("device set changed")
	for _, cb := range listeners {
		cb(append([]domain.AudioDevice(nil), inputs...), supported)
	}
}

func sameDevices(a, b []domain.AudioDevice) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Label != b[i].Label {
			return false
		}
	}
	return true
}

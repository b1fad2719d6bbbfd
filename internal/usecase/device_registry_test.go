package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cuecard/internal/domain"
)

func TestDeviceRegistryListsInputsOnly(t *testing.T) {
	t.Parallel()

	enum := &fakeEnumerator{sources: []domain.AudioDevice{
		{ID: "alsa_input.usb", Label: "USB Mic", Kind: domain.DeviceKindInput},
		{ID: "alsa_output.speakers.monitor", Label: "Monitor of Speakers", Kind: domain.DeviceKindMonitor},
	}}
	registry := NewDeviceRegistry(enum, zerolog.Nop())

	devices := registry.ListInputDevices(context.Background())
	if len(devices) != 1 || devices[0].ID != "alsa_input.usb" {
		t.Fatalf("unexpected devices: %+v", devices)
	}
	if !registry.Supported() {
		t.Fatalf("expected enumeration supported")
	}
}

func TestDeviceRegistryDegradesOnEnumerationFailure(t *testing.T) {
	t.Parallel()

	enum := &fakeEnumerator{err: errors.New("connection refused")}
	registry := NewDeviceRegistry(enum, zerolog.Nop())

	if devices := registry.ListInputDevices(context.Background()); len(devices) != 0 {
		t.Fatalf("expected no devices, got %+v", devices)
	}
	if registry.Supported() {
		t.Fatalf("expected unsupported flag")
	}
	if got := registry.Resolve("alsa_input.usb"); got != domain.DefaultDeviceID {
		t.Fatalf("expected default fallback, got %q", got)
	}
}

func TestDeviceRegistryResolveKnownDevice(t *testing.T) {
	t.Parallel()

	enum := &fakeEnumerator{sources: []domain.AudioDevice{{ID: "mic-1", Label: "Mic", Kind: domain.DeviceKindInput}}}
	registry := NewDeviceRegistry(enum, zerolog.Nop())
	registry.ListInputDevices(context.Background())

	if got := registry.Resolve("mic-1"); got != "mic-1" {
		t.Fatalf("expected known device kept, got %q", got)
	}
	if got := registry.Resolve("gone"); got != domain.DefaultDeviceID {
		t.Fatalf("expected default for missing device, got %q", got)
	}
}

func TestDeviceRegistryNotifiesOnlyOnChange(t *testing.T) {
	t.Parallel()

	enum := &fakeEnumerator{sources: []domain.AudioDevice{{ID: "mic-1", Label: "Mic", Kind: domain.DeviceKindInput}}}
	registry := NewDeviceRegistry(enum, zerolog.Nop())

	var (
		mu    sync.Mutex
		calls [][]domain.AudioDevice
	)
	registry.OnDeviceChange(func(devices []domain.AudioDevice, _ bool) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, devices)
	})

	registry.ListInputDevices(context.Background())
	registry.ListInputDevices(context.Background())
	enum.set([]domain.AudioDevice{{ID: "mic-1", Label: "Mic (renamed)", Kind: domain.DeviceKindInput}}, nil)
	registry.ListInputDevices(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 {
		t.Fatalf("expected 2 change notifications, got %d", len(calls))
	}
	if calls[1][0].Label != "Mic (renamed)" {
		t.Fatalf("unexpected second notification: %+v", calls[1])
	}
}

func TestDeviceRegistryWatchPicksUpHotPlug(t *testing.T) {
	t.Parallel()

	enum := &fakeEnumerator{}
	registry := NewDeviceRegistry(enum, zerolog.Nop())
	changed := make(chan []domain.AudioDevice, 4)
	registry.OnDeviceChange(func(devices []domain.AudioDevice, _ bool) { changed <- devices })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go registry.Watch(ctx, 5*time.Millisecond)

	enum.set([]domain.AudioDevice{{ID: "headset", Label: "Headset", Kind: domain.DeviceKindInput}}, nil)

	select {
	case devices := <-changed:
		if len(devices) != 1 || devices[0].ID != "headset" {
			t.Fatalf("unexpected devices: %+v", devices)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for hot-plug notification")
	}
}

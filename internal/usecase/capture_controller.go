package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"cuecard/internal/domain"
	"cuecard/internal/ports"
)

// CaptureSession is the single active hardware capture.
type CaptureSession struct {
	Source domain.AudioSource
	Audio  ports.AudioSession
}

// CaptureController owns the capture lifecycle. At most one CaptureSession
// exists at a time; starting a new one stops the previous one first.
type CaptureController struct {
	capture ports.AudioCapture
	devices ports.DeviceEnumerator
	base    ports.AudioConfig
	log     zerolog.Logger

	mu      sync.Mutex
	current *CaptureSession
}

func NewCaptureController(capture ports.AudioCapture, devices ports.DeviceEnumerator, base ports.AudioConfig, log zerolog.Logger) *CaptureController {
	return &CaptureController{
		capture: capture,
		devices: devices,
		base:    base,
		log:     log.With().Str("component", "capture").Logger(),
	}
}

// Start acquires audio for source.
func (c *CaptureController) Start(ctx context.Context, source domain.AudioSource) (*CaptureSession, error) {
	c.Stop()

	if c.capture == nil {
		return nil, domain.ErrCapabilityUnsupported
	}

	cfg := c.base
	switch source.Kind {
	case domain.SourceSystem:
		if err := c.requireMonitor(ctx); err != nil {
			return nil, err
		}
		source.DeviceID = ""
		cfg.Processing = ports.Processing{}
	case domain.SourceMicrophone, "":
		source.Kind = domain.SourceMicrophone
		if strings.TrimSpace(source.DeviceID) == "" {
			source.DeviceID = domain.DefaultDeviceID
		}
		cfg.Processing = ports.Processing{EchoCancellation: true, NoiseSuppression: true, AutoGain: true}
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", domain.ErrCapabilityUnsupported, source.Kind)
	}
	cfg.Source = source

	audio, err := c.capture.Start(ctx, cfg)
	if err != nil {
		c.log.Warn().Err(err).Str("source", string(source.Kind)).Str("device", source.DeviceID).Msg("capture start failed")
		return nil, classifyCaptureError(err)
	}

	session := &CaptureSession{Source: source, Audio: audio}
	c.mu.Lock()
	c.current = session
	c.mu.Unlock()
	c.log.Info().Str("source", string(source.Kind)).Str("device", source.DeviceID).Msg("capture started")
	return session, nil
}

// Stop releases the active capture, if any. Safe to call repeatedly.
func (c *CaptureController) Stop() {
	c.mu.Lock()
	session := c.current
	c.current = nil
	c.mu.Unlock()
	if session == nil {
		return
	}
	if err := session.Audio.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("capture stop")
	}
}

// Current returns the active capture or nil.
func (c *CaptureController) Current() *CaptureSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *CaptureController) requireMonitor(ctx context.Context) error {
	if c.devices == nil {
		return domain.ErrCapabilityUnsupported
	}
	sources, err := c.devices.Sources(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCapabilityUnsupported, err)
	}
	for _, s := range sources {
		if s.Kind == domain.DeviceKindMonitor {
			return nil
		}
	}
	return domain.ErrNoSystemAudio
}

func classifyCaptureError(err error) error {
	if errors.Is(err, domain.ErrCapabilityUnsupported) ||
		errors.Is(err, domain.ErrNoSystemAudio) ||
		errors.Is(err, domain.ErrPermissionDenied) ||
		errors.Is(err, domain.ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
}

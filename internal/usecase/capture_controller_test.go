package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"cuecard/internal/domain"
	"cuecard/internal/ports"
)

func TestCaptureControllerMicrophoneEnablesProcessing(t *testing.T) {
	t.Parallel()

	capture := &fakeAudioCapture{}
	controller := NewCaptureController(capture, &fakeEnumerator{}, ports.AudioConfig{SampleRate: 16000, Channels: 1}, zerolog.Nop())

	session, err := controller.Start(context.Background(), domain.AudioSource{Kind: domain.SourceMicrophone})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if session.Source.DeviceID != domain.DefaultDeviceID {
		t.Fatalf("expected default device, got %q", session.Source.DeviceID)
	}

	cfg := capture.snapshotConfigs()[0]
	if !cfg.Processing.EchoCancellation || !cfg.Processing.NoiseSuppression || !cfg.Processing.AutoGain {
		t.Fatalf("expected all processing enabled, got %+v", cfg.Processing)
	}
	if cfg.SampleRate != 16000 {
		t.Fatalf("expected base config preserved, got %+v", cfg)
	}
}

func TestCaptureControllerSwitchStopsPreviousSession(t *testing.T) {
	t.Parallel()

	first := newLiveAudioSession()
	second := newLiveAudioSession()
	capture := &fakeAudioCapture{sessions: []ports.AudioSession{first, second}}
	enum := &fakeEnumerator{sources: []domain.AudioDevice{{ID: "sink.monitor", Kind: domain.DeviceKindMonitor}}}
	controller := NewCaptureController(capture, enum, ports.AudioConfig{}, zerolog.Nop())

	if _, err := controller.Start(context.Background(), domain.AudioSource{Kind: domain.SourceMicrophone}); err != nil {
		t.Fatalf("microphone start failed: %v", err)
	}
	session, err := controller.Start(context.Background(), domain.AudioSource{Kind: domain.SourceSystem})
	if err != nil {
		t.Fatalf("system start failed: %v", err)
	}

	if !first.isStopped() {
		t.Fatalf("expected microphone capture stopped before system capture")
	}
	if second.isStopped() {
		t.Fatalf("expected system capture active")
	}
	if controller.Current() != session {
		t.Fatalf("expected current session to be the system capture")
	}
	if cfg := capture.snapshotConfigs()[1]; cfg.Processing != (ports.Processing{}) {
		t.Fatalf("expected no processing on system audio, got %+v", cfg.Processing)
	}
}

func TestCaptureControllerSystemWithoutMonitor(t *testing.T) {
	t.Parallel()

	capture := &fakeAudioCapture{}
	enum := &fakeEnumerator{sources: []domain.AudioDevice{{ID: "mic", Kind: domain.DeviceKindInput}}}
	controller := NewCaptureController(capture, enum, ports.AudioConfig{}, zerolog.Nop())

	_, err := controller.Start(context.Background(), domain.AudioSource{Kind: domain.SourceSystem})
	if !errors.Is(err, domain.ErrNoSystemAudio) {
		t.Fatalf("expected ErrNoSystemAudio, got %v", err)
	}
	if domain.CaptureErrorCode(err) != domain.ErrorCodeCapability {
		t.Fatalf("expected capability class, got %s", domain.CaptureErrorCode(err))
	}
	if len(capture.snapshotConfigs()) != 0 {
		t.Fatalf("expected nothing acquired")
	}
	if controller.Current() != nil {
		t.Fatalf("expected no active session")
	}
}

func TestCaptureControllerClassifiesFailures(t *testing.T) {
	t.Parallel()

	capture := &fakeAudioCapture{err: errors.New("device busy")}
	controller := NewCaptureController(capture, &fakeEnumerator{}, ports.AudioConfig{}, zerolog.Nop())

	_, err := controller.Start(context.Background(), domain.AudioSource{Kind: domain.SourceMicrophone, DeviceID: "usb"})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission class, got %v", err)
	}

	unsupported := NewCaptureController(nil, nil, ports.AudioConfig{}, zerolog.Nop())
	_, err = unsupported.Start(context.Background(), domain.AudioSource{Kind: domain.SourceMicrophone})
	if !errors.Is(err, domain.ErrCapabilityUnsupported) {
		t.Fatalf("expected capability error, got %v", err)
	}
}

func TestCaptureControllerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	audio := newLiveAudioSession()
	controller := NewCaptureController(&fakeAudioCapture{sessions: []ports.AudioSession{audio}}, nil, ports.AudioConfig{}, zerolog.Nop())
	if _, err := controller.Start(context.Background(), domain.AudioSource{Kind: domain.SourceMicrophone}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	controller.Stop()
	controller.Stop()

	audio.mu.Lock()
	calls := audio.stopCalls
	audio.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected one stop call, got %d", calls)
	}
}

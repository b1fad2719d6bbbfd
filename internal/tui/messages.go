package tui

import (
	"cuecard/internal/domain"
)

// PhaseMsg reports a session phase or capture transition.
type PhaseMsg struct {
	Phase  domain.SessionPhase
	Reason domain.PhaseReason
}

// TranscriptionStateMsg reports the speech connection state.
type TranscriptionStateMsg struct {
	State domain.TranscriptionState
}

// TranscriptMsg carries the latest transcript buffer contents.
type TranscriptMsg struct {
	Snapshot domain.TranscriptSnapshot
}

// TurnMsg carries a created or updated interview turn.
type TurnMsg struct {
	Turn domain.InterviewTurn
}

// ClockMsg carries a session clock tick.
type ClockMsg struct {
	Reading domain.ClockReading
}

// DevicesMsg carries the current input device list.
type DevicesMsg struct {
	Devices   []domain.AudioDevice
	Supported bool
}

// SessionErrorMsg carries an error surfaced by the session.
type SessionErrorMsg struct {
	Code   domain.ErrorCode
	Detail string
}

// startedMsg is returned once session start has completed or failed.
type startedMsg struct {
	err error
}

// actionMsg reports the outcome of a user action run off the update loop.
type actionMsg struct {
	action string
	err    error
	status *domain.Status
}

// quitMsg is returned once the session has been finalized for exit.
type quitMsg struct{}

// clearErrorMsg clears a transient error after a delay.
type clearErrorMsg struct {
	seq int
}

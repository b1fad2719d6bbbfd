package usecase

import (
	"strings"
	"sync"

	"cuecard/internal/domain"
)

// TranscriptBuffer holds the running transcript. Final fragments are appended
// to the finalized text; partial fragments replace the interim text.
type TranscriptBuffer struct {
	mu        sync.Mutex
	finalized string
	interim   string
}

func NewTranscriptBuffer() *TranscriptBuffer {
	return &TranscriptBuffer{}
}

// Apply folds one provider event into the buffer and reports whether the
// visible transcript changed.
func (b *TranscriptBuffer) Apply(event domain.TranscriptEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	text := strings.TrimSpace(event.Text)
	switch event.Kind {
	case domain.TranscriptKindFinal:
		changed := b.interim != ""
		b.interim = ""
		if text == "" {
			return changed
		}
		if b.finalized == "" {
			b.finalized = text
		} else {
			b.finalized += " " + text
		}
		return true
	case domain.TranscriptKindPartial:
		if text == b.interim {
			return false
		}
		b.interim = text
		return true
	default:
		return false
	}
}

// Clear empties both parts of the buffer.
func (b *TranscriptBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finalized = ""
	b.interim = ""
}

func (b *TranscriptBuffer) Snapshot() domain.TranscriptSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return domain.TranscriptSnapshot{Finalized: b.finalized, Interim: b.interim}
}

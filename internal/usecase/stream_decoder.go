package usecase

import (
	"encoding/json"
	"strings"
)

// FrameKind tags a decoded generation stream payload.
type FrameKind int

const (
	FrameToken FrameKind = iota
	FrameDone
	FrameError
	FrameMalformed
)

// StreamFrame is one decoded payload. Text holds the token for FrameToken and
// the message for FrameError.
type StreamFrame struct {
	Kind FrameKind
	Text string
}

const (
	doneSentinel  = "[DONE]"
	errorSentinel = "[ERROR]"
)

type deltaPayload struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// DecodeFrame accepts raw sentinels, bare JSON strings and
// choices[].delta.content objects.
func DecodeFrame(payload string) StreamFrame {
	trimmed := strings.TrimSpace(payload)
	if frame, ok := decodeSentinel(trimmed); ok {
		return frame
	}
	if trimmed == "" {
		return StreamFrame{Kind: FrameMalformed}
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal([]byte(trimmed), &text); err != nil {
			return StreamFrame{Kind: FrameMalformed}
		}
		if frame, ok := decodeSentinel(strings.TrimSpace(text)); ok {
			return frame
		}
		return StreamFrame{Kind: FrameToken, Text: text}
	case '{':
		var delta deltaPayload
		if err := json.Unmarshal([]byte(trimmed), &delta); err != nil {
			return StreamFrame{Kind: FrameMalformed}
		}
		if len(delta.Choices) == 0 || delta.Choices[0].Delta.Content == nil {
			return StreamFrame{Kind: FrameMalformed}
		}
		return StreamFrame{Kind: FrameToken, Text: *delta.Choices[0].Delta.Content}
	default:
		return StreamFrame{Kind: FrameMalformed}
	}
}

func decodeSentinel(text string) (StreamFrame, bool) {
	if text == doneSentinel {
		return StreamFrame{Kind: FrameDone}, true
	}
	if strings.HasPrefix(text, errorSentinel) {
		msg := strings.TrimSpace(strings.TrimPrefix(text, errorSentinel))
		if msg == "" {
			msg = "generation failed"
		}
		return StreamFrame{Kind: FrameError, Text: msg}, true
	}
	return StreamFrame{}, false
}

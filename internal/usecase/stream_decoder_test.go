package usecase

import "testing"

func TestDecodeFrame(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
		want    StreamFrame
	}{
		{name: "done sentinel", payload: "[DONE]", want: StreamFrame{Kind: FrameDone}},
		{name: "error sentinel", payload: "[ERROR] rate limited", want: StreamFrame{Kind: FrameError, Text: "rate limited"}},
		{name: "bare error sentinel", payload: "[ERROR]", want: StreamFrame{Kind: FrameError, Text: "generation failed"}},
		{name: "delta", payload: `{"choices":[{"delta":{"content":"Hello"}}]}`, want: StreamFrame{Kind: FrameToken, Text: "Hello"}},
		{name: "empty delta", payload: `{"choices":[{"delta":{"content":""}}]}`, want: StreamFrame{Kind: FrameToken}},
		{name: "json string token", payload: `" world"`, want: StreamFrame{Kind: FrameToken, Text: " world"}},
		{name: "json string done", payload: `"[DONE]"`, want: StreamFrame{Kind: FrameDone}},
		{name: "json string error", payload: `"[ERROR] upstream"`, want: StreamFrame{Kind: FrameError, Text: "upstream"}},
		{name: "plain text", payload: "hello there", want: StreamFrame{Kind: FrameMalformed}},
		{name: "unknown object", payload: `{"foo":1}`, want: StreamFrame{Kind: FrameMalformed}},
		{name: "broken json", payload: `{"choices":[`, want: StreamFrame{Kind: FrameMalformed}},
		{name: "empty", payload: "  ", want: StreamFrame{Kind: FrameMalformed}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := DecodeFrame(tc.payload); got != tc.want {
				t.Fatalf("DecodeFrame(%q) = %+v, want %+v", tc.payload, got, tc.want)
			}
		})
	}
}

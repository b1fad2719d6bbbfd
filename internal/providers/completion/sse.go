package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	sse "github.com/tmaxmax/go-sse"

	"cuecard/internal/domain"
	"cuecard/internal/ports"
)

// Provider opens generation streams against a server-sent-event endpoint.
type Provider struct {
	endpoint string
	tokens   ports.TokenStore
	client   *http.Client
	log      zerolog.Logger
}

func NewProvider(endpoint string, tokens ports.TokenStore, client *http.Client, log zerolog.Logger) *Provider {
	if client == nil {
		// No overall timeout: streams stay open for as long as the answer runs.
		client = &http.Client{}
	}
	return &Provider{
		endpoint: strings.TrimSpace(endpoint),
		tokens:   tokens,
		client:   client,
		log:      log.With().Str("component", "completion").Logger(),
	}
}

// OpenStream issues the request and returns once response headers arrive.
func (p *Provider) OpenStream(ctx context.Context, req domain.GenerationRequest) (ports.CompletionStream, error) {
	if p.endpoint == "" {
		return nil, fmt.Errorf("%w: completion endpoint is empty", domain.ErrConfiguration)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	target, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid completion endpoint: %v", domain.ErrConfiguration, err)
	}
	query := target.Query()
	query.Set("payload", string(payload))
	target.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if p.tokens != nil {
		if token, ok := p.tokens.BearerToken(); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("open generation stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	p.log.Debug().Str("provider", req.Provider).Int("max_tokens", req.MaxTokens).Msg("generation stream opened")
	return newEventStream(resp.Body), nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: generation stream status %d: %s", domain.ErrAuthentication, resp.StatusCode, detail)
	}
	return fmt.Errorf("generation stream status %d: %s", resp.StatusCode, detail)
}

// eventStream yields the data field of each server-sent event.
type eventStream struct {
	body io.ReadCloser

	// mu serializes next and stop.
	mu   sync.Mutex
	next func() (sse.Event, error, bool)
	stop func()

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newEventStream(body io.ReadCloser) *eventStream {
	next, stop := iter.Pull2[sse.Event, error](sse.Read(body, nil))
	return &eventStream{body: body, next: next, stop: stop}
}

// Recv blocks for the next event payload. Multi-line data fields arrive
// joined with newlines; comments and events without data are skipped.
func (s *eventStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, err, ok := s.next()
	if s.closed.Load() {
		s.stop()
		return "", context.Canceled
	}
	if !ok {
		s.stop()
		return "", io.EOF
	}
	if err != nil {
		s.stop()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", io.EOF
		}
		return "", fmt.Errorf("read generation stream: %w", err)
	}
	return event.Data, nil
}

// Close ends the stream and unblocks a pending Recv.
func (s *eventStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if err := s.body.Close(); err != nil && !errors.Is(err, http.ErrBodyReadAfterClose) {
			s.closeErr = err
		}
		s.mu.Lock()
		s.stop()
		s.mu.Unlock()
	})
	return s.closeErr
}

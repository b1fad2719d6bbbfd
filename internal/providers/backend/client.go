package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cuecard/internal/domain"
	"cuecard/internal/ports"
)

const defaultTimeout = 15 * time.Second

var (
	_ ports.CredentialProvider = (*Client)(nil)
	_ ports.UsageLedger        = (*Client)(nil)
	_ ports.AnswerStore        = (*Client)(nil)
	_ ports.SummaryGenerator   = (*Client)(nil)
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Unwrap classifies rejected credentials.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden {
		return domain.ErrAuthentication
	}
	return nil
}

// Client talks to the interview backend. It implements the credential
// provider, usage ledger, answer store and summary generator ports.
type Client struct {
	base   *url.URL
	tokens ports.TokenStore
	http   *http.Client
	log    zerolog.Logger
}

func NewClient(baseURL string, tokens ports.TokenStore, httpClient *http.Client, log zerolog.Logger) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: backend URL is empty", domain.ErrConfiguration)
	}
	base, err := url.Parse(trimmed)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid backend URL %q", domain.ErrConfiguration, baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		base:   base,
		tokens: tokens,
		http:   httpClient,
		log:    log.With().Str("component", "backend").Logger(),
	}, nil
}

type tokenResponse struct {
	Token string `json:"token"`
}

// TranscriptionCredential fetches a short-lived speech credential.
func (c *Client) TranscriptionCredential(ctx context.Context) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodGet, "/api/transcription/token", nil, &resp); err != nil {
		return "", fmt.Errorf("fetch transcription credential: %w", err)
	}
	token := strings.TrimSpace(resp.Token)
	if token == "" {
		return "", fmt.Errorf("%w: backend returned an empty transcription credential", domain.ErrAuthentication)
	}
	return token, nil
}

// StartSession registers a session run and returns the interview allowance.
func (c *Client) StartSession(ctx context.Context, interviewID string) (domain.UsageSnapshot, error) {
	var snapshot domain.UsageSnapshot
	if err := c.do(ctx, http.MethodPost, interviewPath(interviewID, "sessions"), struct{}{}, &snapshot); err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("start session: %w", err)
	}
	if snapshot.DurationSeconds < 0 || snapshot.UsedSeconds < 0 {
		return domain.UsageSnapshot{}, fmt.Errorf("start session: negative allowance %+v", snapshot)
	}
	return snapshot, nil
}

type usageBody struct {
	Finalize  bool   `json:"finalize"`
	StartedAt string `json:"startedAt"`
	EndedAt   string `json:"endedAt"`
}

func (c *Client) RecordUsage(ctx context.Context, interviewID string, record domain.UsageRecord) error {
	body := usageBody{
		Finalize:  record.Finalize,
		StartedAt: record.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:   record.EndedAt.UTC().Format(time.RFC3339),
	}
	if err := c.do(ctx, http.MethodPost, interviewPath(interviewID, "usage"), body, nil); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (c *Client) SaveAnswer(ctx context.Context, answer domain.SavedAnswer) error {
	if err := c.do(ctx, http.MethodPost, "/api/answers", answer, nil); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (c *Client) GenerateSummary(ctx context.Context, interviewID string) error {
	if err := c.do(ctx, http.MethodPost, interviewPath(interviewID, "summary"), struct{}{}, nil); err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}
	return nil
}

func interviewPath(interviewID, action string) string {
	return "/api/interviews/" + url.PathEscape(interviewID) + "/" + action
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	target := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token, ok := c.tokens.BearerToken(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}

	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("backend request")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty response body")
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cuecard/internal/domain"
	"cuecard/internal/ports"

	_ "modernc.org/sqlite"
)

const (
	MemoryPath = ":memory:"

	summaryExcerptRunes = 240
)

var (
	_ ports.UsageLedger      = (*Store)(nil)
	_ ports.AnswerStore      = (*Store)(nil)
	_ ports.SummaryGenerator = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS usage (
	interviewId TEXT NOT NULL,
	startedAt REAL NOT NULL,
	endedAt REAL NOT NULL,
	finalized INTEGER NOT NULL DEFAULT 0,
	updatedAt REAL NOT NULL,
	PRIMARY KEY (interviewId, startedAt)
);

CREATE TABLE IF NOT EXISTS answers (
	id TEXT PRIMARY KEY,
	interviewId TEXT NOT NULL,
	question TEXT NOT NULL,
	answerText TEXT NOT NULL,
	provider TEXT NOT NULL,
	createdAt REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS answers_interview ON answers (interviewId, createdAt);

CREATE TABLE IF NOT EXISTS summaries (
	interviewId TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	answerCount INTEGER NOT NULL,
	createdAt REAL NOT NULL
);
`

// Answer is a persisted answer row.
type Answer struct {
	ID          string
	InterviewID string
	Question    string
	AnswerText  string
	Provider    string
	CreatedAt   time.Time
}

// Summary is the composed digest of an interview.
type Summary struct {
	InterviewID string
	Content     string
	AnswerCount int
	CreatedAt   time.Time
}

// Store is the offline ledger, answer archive and summary generator.
type Store struct {
	db              *sql.DB
	durationSeconds int
	now             func() time.Time
}

// Open opens or creates the database at path and applies the schema.
// durationSeconds is the allowance reported by StartSession; zero means
// unbounded.
func Open(path string, durationSeconds int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: store path is empty", domain.ErrConfiguration)
	}

	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return &Store{db: db, durationSeconds: durationSeconds, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession reports the configured allowance and the seconds already
// recorded against interviewID.
func (s *Store) StartSession(ctx context.Context, interviewID string) (domain.UsageSnapshot, error) {
	var used sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(endedAt - startedAt)
		FROM usage
		WHERE interviewId = ?
	`, interviewID).Scan(&used)
	if err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("sum usage: %w", err)
	}

	snapshot := domain.UsageSnapshot{DurationSeconds: s.durationSeconds}
	if used.Valid && used.Float64 > 0 {
		snapshot.UsedSeconds = int(math.Round(used.Float64))
	}
	return snapshot, nil
}

// RecordUsage upserts the run identified by record.StartedAt. Checkpoints
// for the same run only ever extend it.
func (s *Store) RecordUsage(ctx context.Context, interviewID string, record domain.UsageRecord) error {
	if record.StartedAt.IsZero() {
		return errors.New("record usage: missing start time")
	}
	ended := record.EndedAt
	if ended.Before(record.StartedAt) {
		ended = record.StartedAt
	}

	finalized := 0
	if record.Finalize {
		finalized = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage (interviewId, startedAt, endedAt, finalized, updatedAt)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (interviewId, startedAt) DO UPDATE SET
			endedAt = MAX(endedAt, excluded.endedAt),
			finalized = MAX(finalized, excluded.finalized),
			updatedAt = excluded.updatedAt
	`, interviewID, unixSeconds(record.StartedAt), unixSeconds(ended), finalized, unixSeconds(s.now()))
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (s *Store) SaveAnswer(ctx context.Context, answer domain.SavedAnswer) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("answer id: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO answers (id, interviewId, question, answerText, provider, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), answer.InterviewID, answer.Question, answer.AnswerText, answer.Provider, unixSeconds(s.now()))
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// Answers returns the saved answers for interviewID, oldest first.
func (s *Store) Answers(ctx context.Context, interviewID string) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, interviewId, question, answerText, provider, createdAt
		FROM answers
		WHERE interviewId = ?
		ORDER BY createdAt ASC, id ASC
	`, interviewID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var answers []Answer
	for rows.Next() {
		var a Answer
		var createdAt float64
		if err := rows.Scan(&a.ID, &a.InterviewID, &a.Question, &a.AnswerText, &a.Provider, &createdAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		a.CreatedAt = timeFromUnix(createdAt)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// GenerateSummary composes a digest from the saved answers and replaces any
// earlier summary for interviewID.
func (s *Store) GenerateSummary(ctx context.Context, interviewID string) error {
	answers, err := s.Answers(ctx, interviewID)
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO summaries (interviewId, content, answerCount, createdAt)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (interviewId) DO UPDATE SET
			content = excluded.content,
			answerCount = excluded.answerCount,
			createdAt = excluded.createdAt
	`, interviewID, composeSummary(interviewID, answers), len(answers), unixSeconds(s.now()))
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}
	return nil
}

// Summary returns the stored summary, or nil when none was generated.
func (s *Store) Summary(ctx context.Context, interviewID string) (*Summary, error) {
	var sum Summary
	var createdAt float64
	err := s.db.QueryRowContext(ctx, `
		SELECT interviewId, content, answerCount, createdAt
		FROM summaries
		WHERE interviewId = ?
	`, interviewID).Scan(&sum.InterviewID, &sum.Content, &sum.AnswerCount, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	sum.CreatedAt = timeFromUnix(createdAt)
	return &sum, nil
}

func composeSummary(interviewID string, answers []Answer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interview %s: %d answered question(s)\n", interviewID, len(answers))
	for i, a := range answers {
		fmt.Fprintf(&b, "\n%d. Q: %s\n   A: %s\n", i+1, oneLine(a.Question), excerpt(oneLine(a.AnswerText), summaryExcerptRunes))
	}
	return strings.TrimRight(b.String(), "\n")
}

func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

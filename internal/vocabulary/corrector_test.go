package vocabulary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeVocabulary(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write vocabulary file: %v", err)
	}
	return path
}

func TestCorrectorTermsAndPatterns(t *testing.T) {
	t.Parallel()

	path := writeVocabulary(t, `
terms:
  - from: kuber netties
    to: Kubernetes
  - from: pull request
    to: PR
patterns:
  - match: '\bdeep\s*gram\b'
    replace: Deepgram
`)

	corrector, err := Load(path, 30)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if corrector.Len() != 3 {
		t.Fatalf("expected 3 rules, got %d", corrector.Len())
	}

	output, err := corrector.Apply("Kuber Netties and deep gram in a pull request")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "Kubernetes and Deepgram in a PR" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestCorrectorTermsRespectWordBoundaries(t *testing.T) {
	t.Parallel()

	corrector, err := New(File{Terms: []Term{{From: "go", To: "Go"}}}, 0)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	output, _ := corrector.Apply("go and gopher are going")
	if output != "Go and gopher are going" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestCorrectorIteratesUntilStable(t *testing.T) {
	t.Parallel()

	corrector, err := New(File{Terms: []Term{
		{From: "b", To: "c"},
		{From: "a", To: "b"},
	}}, 5)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	output, _ := corrector.Apply("a")
	if output != "c" {
		t.Fatalf("expected chained output, got %q", output)
	}
}

func TestCorrectorStopsAtIterationLimit(t *testing.T) {
	t.Parallel()

	corrector, err := New(File{Patterns: []Pattern{{Match: "x$", Replace: "xx"}}}, 3)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	output, err := corrector.Apply("x")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != strings.Repeat("x", 4) {
		t.Fatalf("expected three expansions, got %q", output)
	}
}

func TestCorrectorFirstOnlyPatternExpandsGroups(t *testing.T) {
	t.Parallel()

	corrector, err := New(File{Patterns: []Pattern{{
		Match:         `(\d+) k`,
		Replace:       "${1}k",
		CaseSensitive: true,
		FirstOnly:     true,
	}}}, 1)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	output, _ := corrector.Apply("10 k and 20 k")
	if output != "10k and 20 k" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	corrector, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), 0)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	output, _ := corrector.Apply("unchanged")
	if output != "unchanged" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestLoadRejectsInvalidRules(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty term":    "terms:\n  - from: ''\n    to: x\n",
		"bad regex":     "patterns:\n  - match: '('\n    replace: x\n",
		"malformed doc": "terms: [",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := Load(writeVocabulary(t, contents), 0); err == nil {
				t.Fatalf("expected load error")
			}
		})
	}
}

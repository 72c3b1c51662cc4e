package main

import (
	"strings"
	"testing"

	"distill/internal/domain"
	"distill/internal/summarizer"

	"github.com/spf13/cobra"
)

func parseSummaryFlags(t *testing.T, args ...string) (*summaryFlags, *cobra.Command) {
	t.Helper()

	f := &summaryFlags{}
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)

	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	return f, cmd
}

func TestSummaryFlagsOptions(t *testing.T) {
	f, cmd := parseSummaryFlags(t,
		"--max-tokens", "500",
		"--target-length", "100",
		"--model", "claude-sonnet-4-5",
		"--timeout", "30",
		"--bullets",
		"--no-store")

	opts := f.options(cmd)
	if opts.MaxTokens != 500 || opts.TargetLength != 100 || opts.Model != "claude-sonnet-4-5" {
		t.Fatalf("unexpected options: %+v", opts)
	}

	if opts.TimeoutSeconds != 30 || !opts.NoStore || opts.Style != summarizer.StyleBullets {
		t.Fatalf("unexpected options: %+v", opts)
	}

	if opts.MaxRetries != 0 {
		t.Fatalf("unset max-retries must keep the default, got %d", opts.MaxRetries)
	}
}

func TestSummaryFlagsMaxRetries(t *testing.T) {
	tests := []struct {
		arg  string
		want int
	}{
		{"0", -1},
		{"5", 5},
	}

	for _, test := range tests {
		t.Run(test.arg, func(t *testing.T) {
			f, cmd := parseSummaryFlags(t, "--max-retries", test.arg)

			if got := f.options(cmd).MaxRetries; got != test.want {
				t.Fatalf("MaxRetries = %d, want %d", got, test.want)
			}
		})
	}
}

func TestHandleArg(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("text from stdin"))

	got, err := handleArg(cmd, domain.SourceText, nil)
	if err != nil || got != "text from stdin" {
		t.Fatalf("handleArg = %q, %v", got, err)
	}

	if got, err = handleArg(cmd, domain.SourceWebpage, []string{"https://example.com"}); err != nil || got != "https://example.com" {
		t.Fatalf("handleArg = %q, %v", got, err)
	}

	if _, err = handleArg(cmd, domain.SourcePDF, nil); err == nil {
		t.Fatalf("expected an error without input")
	}

	cmd.SetIn(strings.NewReader("  "))
	if _, err = handleArg(cmd, domain.SourceText, []string{"-"}); err == nil {
		t.Fatalf("expected an error for blank stdin")
	}
}

func TestRootCommands(t *testing.T) {
	root := rootCmd(&app{})

	for _, path := range [][]string{
		{"text"}, {"file"}, {"webpage"}, {"video"}, {"pdf"}, {"arxiv"}, {"auto"},
		{"history"}, {"show"}, {"serve"},
		{"watch", "add"}, {"watch", "list"}, {"watch", "remove"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd == root {
			t.Fatalf("command %v is not registered: %v", path, err)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}

	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("truncate = %q", got)
	}
}

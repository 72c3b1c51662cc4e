package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"distill/internal/domain"
	"distill/internal/extractor"
	"distill/internal/pipeline"
	"distill/internal/publisher"
	"distill/internal/summarizer"

	"github.com/spf13/cobra"
)

type summaryFlags struct {
	maxTokens    int
	targetLength int
	model        string
	timeout      int
	maxRetries   int
	bullets      bool
	output       string
	noStore      bool
}

func (f *summaryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVar(&f.maxTokens, "max-tokens", 0, "maximum tokens per chunk (default from DISTILL_MAX_TOKENS)")
	flags.IntVar(&f.targetLength, "target-length", 0, "target summary length in tokens (default from DISTILL_TARGET_LENGTH)")
	flags.StringVar(&f.model, "model", "", "model identifier (default from DISTILL_MODEL)")
	flags.IntVar(&f.timeout, "timeout", 0, "overall deadline in seconds (default from DISTILL_TIMEOUT_SECONDS)")
	flags.IntVar(&f.maxRetries, "max-retries", 0, "retries per chunk, 0 disables (default from DISTILL_MAX_RETRIES)")
	flags.BoolVar(&f.bullets, "bullets", false, "render the summary as bullet points")
	flags.StringVarP(&f.output, "output", "o", "", "also write the summary to this file")
	flags.BoolVar(&f.noStore, "no-store", false, "do not save the summary to history")
}

func (f *summaryFlags) options(cmd *cobra.Command) pipeline.Options {
	opts := pipeline.Options{
		MaxTokens:      f.maxTokens,
		TargetLength:   f.targetLength,
		Model:          f.model,
		TimeoutSeconds: f.timeout,
		NoStore:        f.noStore,
	}

	if cmd.Flags().Changed("max-retries") {
		opts.MaxRetries = f.maxRetries
		if f.maxRetries == 0 {
			opts.MaxRetries = -1
		}
	}

	if f.bullets {
		opts.Style = summarizer.StyleBullets
	}

	return opts
}

func (f *summaryFlags) publisher(w io.Writer) publisher.Publisher {
	pubs := publisher.Multi{publisher.NewWriter(w, f.bullets)}
	if f.output != "" {
		pubs = append(pubs, publisher.NewFile(f.output, f.bullets))
	}

	return pubs
}

func summaryCmds(a *app) []*cobra.Command {
	return []*cobra.Command{
		summaryCmd(a, "text [text]", "Summarize raw text given as an argument or on stdin", domain.SourceText),
		summaryCmd(a, "file <path>", "Summarize a local text or HTML file", domain.SourceFile),
		summaryCmd(a, "webpage <url>", "Summarize a web page", domain.SourceWebpage),
		summaryCmd(a, "video <url|id>", "Summarize a YouTube video from its captions", domain.SourceVideo),
		summaryCmd(a, "pdf <url|path>", "Summarize a PDF document", domain.SourcePDF),
		summaryCmd(a, "arxiv <id|url>", "Summarize an arXiv paper", domain.SourceArxiv),
		summaryCmd(a, "auto <input>", "Detect the source kind and summarize it", ""),
	}
}

// summaryCmd builds one summarizing command. An empty kind detects the kind
// from the argument.
func summaryCmd(a *app, use, short string, kind domain.SourceKind) *cobra.Command {
	f := &summaryFlags{}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := handleArg(cmd, kind, args)
			if err != nil {
				return err
			}

			k := kind
			if k == "" {
				k = extractor.Detect(handle)
				a.log.DebugContext(cmd.Context(), "Source kind is detected",
					"kind", k)
			}

			p, err := a.pipeline()
			if err != nil {
				return err
			}

			result, err := p.Summarize(cmd.Context(), k, handle, f.options(cmd))
			if err != nil {
				return err
			}

			if result.Partial {
				a.log.WarnContext(cmd.Context(), "Summary is partial",
					"runID", result.RunID,
					"reasons", result.PartialReasons)
			}

			return f.publisher(cmd.OutOrStdout()).Publish(cmd.Context(), result)
		},
	}

	f.register(cmd)

	return cmd
}

// handleArg returns the single argument. Text may also come from stdin when
// the argument is missing or "-".
func handleArg(cmd *cobra.Command, kind domain.SourceKind, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}

	if kind != domain.SourceText {
		return "", errors.New("an input argument is required")
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("no text given")
	}

	return string(data), nil
}

package agent

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkdownReporter renders run results as Markdown reports
type MarkdownReporter struct {
	outputDir string
	enabled   bool
}

// NewMarkdownReporter creates a new Markdown reporter. When enabled,
// GenerateReport also keeps a copy of every report in outputDir.
func NewMarkdownReporter(outputDir string, enabled bool) *MarkdownReporter {
	return &MarkdownReporter{
		outputDir: outputDir,
		enabled:   enabled && outputDir != "",
	}
}

// Write renders the report for one run to w.
func (r *MarkdownReporter) Write(w io.Writer, request string, result *Result) error {
	_, err := io.WriteString(w, r.buildReport(request, result))
	return err
}

// GenerateReport saves the report to {outputDir}/{timestamp}-{runID}.md and
// returns its path. It does nothing when the reporter is disabled.
func (r *MarkdownReporter) GenerateReport(request string, result *Result) (string, error) {
	if !r.enabled {
		return "", nil
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(r.outputDir, fmt.Sprintf("%s-%s.md", timestamp, result.RunID))
	if err := os.WriteFile(path, []byte(r.buildReport(request, result)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// buildReport builds the Markdown report content
func (r *MarkdownReporter) buildReport(request string, res *Result) string {
	var b strings.Builder

	b.WriteString("# Run Report\n\n")

	// Overview
	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "- **Run ID**: `%s`\n", res.RunID)
	fmt.Fprintf(&b, "- **Skill**: `%s`\n", res.Skill)
	fmt.Fprintf(&b, "- **Request**: %s\n", request)
	fmt.Fprintf(&b, "- **Stage**: %s\n", res.Stage)
	fmt.Fprintf(&b, "- **Elapsed**: %s\n", res.Elapsed.Round(time.Millisecond))
	switch {
	case res.Execution != nil && res.Execution.TimedOut:
		b.WriteString("- **Status**: ⏱ Timed out\n")
	case res.Error != nil:
		b.WriteString("- **Status**: ❌ Aborted\n")
	default:
		b.WriteString("- **Status**: ✅ Completed\n")
	}
	if res.Error != nil {
		fmt.Fprintf(&b, "- **Error**: %s\n", *res.Error)
	}
	b.WriteString("\n")

	// Interpreter
	b.WriteString("## Interpreter\n\n")
	writeBlock(&b, res.InterpreterResponse)

	// Fabricator
	b.WriteString("## Script\n\n")
	writeBlock(&b, res.Script)

	// Static analysis
	b.WriteString("## Static Analysis\n\n")
	if res.AnalysisPassed {
		b.WriteString("✅ **Passed**\n\n")
	} else if res.Script != "" {
		b.WriteString("❌ **Failed**\n\n")
	} else {
		b.WriteString("⏳ **Not run**\n\n")
	}
	if res.AnalysisOutput != "" {
		writeBlock(&b, res.AnalysisOutput)
	}

	// Execution
	b.WriteString("## Execution\n\n")
	if ex := res.Execution; ex != nil {
		if ex.ExitCode != nil {
			fmt.Fprintf(&b, "- **Exit Code**: %d\n", *ex.ExitCode)
		} else {
			b.WriteString("- **Exit Code**: none (killed at timeout)\n")
		}
		fmt.Fprintf(&b, "- **Duration**: %dms\n\n", ex.DurationMS)
		if ex.Stdout != "" {
			b.WriteString("**Stdout**:\n")
			writeBlock(&b, ex.Stdout)
		}
		if ex.Stderr != "" {
			b.WriteString("**Stderr**:\n")
			writeBlock(&b, ex.Stderr)
		}
	} else {
		b.WriteString("⏳ **Not executed**\n\n")
	}

	// Footer
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "*Report generated at %s*\n", time.Now().Format(time.RFC3339))

	return b.String()
}

func writeBlock(b *strings.Builder, text string) {
	if text == "" {
		b.WriteString("*empty*\n\n")
		return
	}
	fmt.Fprintf(b, "```\n%s\n```\n\n", strings.TrimRight(text, "\n"))
}

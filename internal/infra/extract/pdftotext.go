package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const defaultTimeout = 25 * time.Second

// CommandExtractor converts PDF bytes to plain text via the pdftotext CLI.
// It satisfies the audit.TextExtractor port.
type CommandExtractor struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommandExtractor returns an extractor using the pdftotext CLI. An empty
// bin falls back to PDFTOTEXT_BIN, then "pdftotext".
func NewCommandExtractor(bin string, timeout time.Duration, logger *slog.Logger) *CommandExtractor {
	if bin == "" {
		bin = os.Getenv("PDFTOTEXT_BIN")
	}
	if bin == "" {
		bin = "pdftotext"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandExtractor{binary: bin, timeout: timeout, logger: logger}
}

// ExtractText writes doc to a temp file, runs pdftotext against it and
// returns the text from stdout. stderr rides along in the error.
func (e *CommandExtractor) ExtractText(ctx context.Context, doc []byte) (string, error) {
	if len(doc) == 0 {
		return "", fmt.Errorf("empty document")
	}

	tmpPDF, err := os.CreateTemp("", "invoice-*.pdf")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmpPDF.Name())

	if _, err := tmpPDF.Write(doc); err != nil {
		tmpPDF.Close()
		return "", err
	}
	tmpPDF.Close()

	cmdCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(cmdCtx, e.binary, "-layout", "-enc", "UTF-8", "-eol", "unix", tmpPDF.Name(), "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		e.logger.Error("extract.pdftotext.fail",
			"err", err,
			"stderr", strings.TrimSpace(stderr.String()),
		)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("pdftotext failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}

	text := strings.TrimSpace(stdout.String())
	e.logger.Debug("extract.pdftotext.done",
		"pdf_bytes", len(doc),
		"text_chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

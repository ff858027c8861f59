package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/payflowhq/invoice-audit/internal/domain/ai"
	domain "github.com/payflowhq/invoice-audit/internal/domain/audit"
	"github.com/payflowhq/invoice-audit/internal/infra/ai/prompt"
)

// Service implements the invoice analysis use-case. One call runs the whole
// pipeline; requests share nothing beyond the injected ports, so the service
// is safe for concurrent use.
type Service struct {
	Extractor domain.TextExtractor
	AI        ai.Client
	Logger    *slog.Logger

	Limits         domain.UnpackLimits
	MaxPromptChars int
}

// AnalyzeCommand carries one request's uploads. AuditID is the
// request-scoped id minted upstream; when blank the service mints its own.
type AnalyzeCommand struct {
	AuditID     string
	PolicyName  string
	Policy      []byte
	ArchiveName string
	Archive     []byte
}

// Analyze runs policy extraction → archive unpacking → invoice extraction →
// one provider call → verdict validation. The first failing stage aborts the
// request; partial reports are never produced.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*domain.Report, error) {
	auditID := cmd.AuditID
	if auditID == "" {
		auditID = uuid.New().String()
	}
	logger := s.logger().With("audit_id", auditID)
	start := time.Now()

	logger.Info("audit.analyze.start",
		"policy", cmd.PolicyName,
		"archive", cmd.ArchiveName,
		"archive_bytes", len(cmd.Archive),
	)

	// Policy first: a bad policy fails before any invoice work or provider call.
	policyText, err := s.Extractor.ExtractText(ctx, cmd.Policy)
	if err != nil {
		logger.Error("audit.analyze.fail", "stage", "policy_extract", "err", err)
		return nil, fmt.Errorf("%w: policy %q: %v", domain.ErrDocument, cmd.PolicyName, err)
	}
	if strings.TrimSpace(policyText) == "" {
		logger.Error("audit.analyze.fail", "stage", "policy_extract", "err", "empty text")
		return nil, fmt.Errorf("%w: no text could be extracted from policy %q", domain.ErrDocument, cmd.PolicyName)
	}

	files, err := domain.UnpackInvoices(cmd.Archive, s.Limits)
	if err != nil {
		logger.Error("audit.analyze.fail", "stage", "unpack", "err", err)
		return nil, err
	}

	invoices := make([]domain.InvoiceText, 0, len(files))
	for _, f := range files {
		text, err := s.Extractor.ExtractText(ctx, f.Data)
		if err != nil {
			logger.Error("audit.analyze.fail", "stage", "invoice_extract", "invoice", f.ID, "err", err)
			return nil, fmt.Errorf("%w: invoice %q: %v", domain.ErrDocument, f.ID, err)
		}
		invoices = append(invoices, domain.InvoiceText{ID: f.ID, Text: text})
	}

	userPrompt := prompt.GetUserPrompt(policyText, invoices)
	if s.MaxPromptChars > 0 && len(userPrompt) > s.MaxPromptChars {
		logger.Error("audit.analyze.fail", "stage", "prompt", "prompt_chars", len(userPrompt))
		return nil, fmt.Errorf("%w: combined documents exceed the analysis size limit", domain.ErrBadInput)
	}

	content, err := s.AI.Complete(ctx, prompt.GetSystemPrompt(), userPrompt)
	if err != nil {
		logger.Error("audit.analyze.fail", "stage", "complete", "err", err)
		return nil, err
	}

	report, err := domain.ParseReport(content)
	if err != nil {
		logger.Error("audit.analyze.fail", "stage", "parse", "err", err)
		return nil, err
	}

	// Soft consistency checks: worth a log line, not a failed request.
	if len(report.Analyses) != len(invoices) {
		logger.Warn("audit.analyze.count_mismatch",
			"invoices", len(invoices),
			"analyses", len(report.Analyses),
		)
	}
	for _, a := range report.Analyses {
		if a.Status == domain.StatusDeclined && a.Amount != 0 {
			logger.Warn("audit.analyze.inconsistent_verdict", "invoice", a.InvoiceID, "amount", a.Amount)
		}
	}

	logger.Info("audit.analyze.done",
		"invoices", len(invoices),
		"analyses", len(report.Analyses),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

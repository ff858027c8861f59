package audit

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseReportHappyPath(t *testing.T) {
	content := `[
		{"invoice_id": "taxi.pdf", "reimbursement_status": "Fully Reimbursed", "reimbursable_amount": 450, "reason": "Travel fares are covered in full under section 3.1."},
		{"invoice_id": "dinner.pdf", "reimbursement_status": "Partially Reimbursed", "reimbursable_amount": 30, "reason": "Meals are capped at 30 per day by section 4.2."},
		{"invoice_id": "spa.pdf", "reimbursement_status": "Declined", "reimbursable_amount": 0, "reason": "Wellness services are excluded by section 7."}
	]`
	report, err := ParseReport(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Analyses) != 3 || report.TotalInvoicesProcessed != 3 {
		t.Fatalf("expected 3 analyses, got %d (total %d)", len(report.Analyses), report.TotalInvoicesProcessed)
	}
	first := report.Analyses[0]
	if first.InvoiceID != "taxi.pdf" || first.Status != StatusFullyReimbursed || first.Amount != 450 {
		t.Fatalf("unexpected first analysis: %+v", first)
	}
	if report.Analyses[2].Status != StatusDeclined {
		t.Fatalf("model output order not preserved: %+v", report.Analyses[2])
	}
}

func TestParseReportArrayInsideProse(t *testing.T) {
	content := "Here is the analysis you asked for:\n```json\n" +
		`[{"invoice_id":"a.pdf","reimbursement_status":"Declined","reimbursable_amount":0,"reason":"No receipt attached, section 2.3."}]` +
		"\n```\nLet me know if you need anything else."
	report, err := ParseReport(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Analyses) != 1 || report.Analyses[0].InvoiceID != "a.pdf" {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestParseReportSkipsBracketedProse(t *testing.T) {
	content := "Declined [see section 3] for the spa invoice. Final verdicts:\n" +
		`[{"invoice_id":"spa.pdf","reimbursement_status":"Declined","reimbursable_amount":0,"reason":"Excluded by section 3."}]`
	report, err := ParseReport(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Analyses) != 1 || report.Analyses[0].InvoiceID != "spa.pdf" {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestParseReportTruncatesFractionalAmount(t *testing.T) {
	content := `[{"invoice_id":"a.pdf","reimbursement_status":"Partially Reimbursed","reimbursable_amount":450.75,"reason":"Cap applied per section 4."}]`
	report, err := ParseReport(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Analyses[0].Amount != 450 {
		t.Fatalf("expected 450 after truncation, got %d", report.Analyses[0].Amount)
	}
}

func TestParseReportRejectsOverflowingAmount(t *testing.T) {
	cases := []struct {
		name   string
		amount string
	}{
		{"huge float", "1e300"},
		{"integer beyond int64", "9300000000000000000"},
		{"first unrepresentable value", "9223372036854775808"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			content := `[{"invoice_id":"a.pdf","reimbursement_status":"Partially Reimbursed","reimbursable_amount":` + tc.amount + `,"reason":"Cap applied per section 4."}]`
			report, err := ParseReport(content)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if report != nil {
				t.Fatalf("expected no report, got %+v", report)
			}
			if !strings.Contains(err.Error(), "entry 0") {
				t.Fatalf("expected element index in error, got %q", err.Error())
			}
		})
	}
}

func TestParseReportAcceptsMaxAmount(t *testing.T) {
	content := `[{"invoice_id":"a.pdf","reimbursement_status":"Fully Reimbursed","reimbursable_amount":9223372036854775807,"reason":"Covered by section 1."}]`
	report, err := ParseReport(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Analyses[0].Amount != math.MaxInt64 {
		t.Fatalf("expected max amount, got %d", report.Analyses[0].Amount)
	}
}

func TestParseReportEmptyArray(t *testing.T) {
	report, err := ParseReport("[]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Analyses) != 0 || report.TotalInvoicesProcessed != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestParseReportNoArray(t *testing.T) {
	_, err := ParseReport("I cannot analyze these invoices.")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestParseReportValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing reason", `[{"invoice_id":"a.pdf","reimbursement_status":"Declined","reimbursable_amount":0}]`},
		{"unknown status", `[{"invoice_id":"a.pdf","reimbursement_status":"Maybe","reimbursable_amount":0,"reason":"x"}]`},
		{"negative amount", `[{"invoice_id":"a.pdf","reimbursement_status":"Declined","reimbursable_amount":-5,"reason":"x"}]`},
		{"string amount", `[{"invoice_id":"a.pdf","reimbursement_status":"Declined","reimbursable_amount":"12","reason":"x"}]`},
		{"empty invoice id", `[{"invoice_id":"","reimbursement_status":"Declined","reimbursable_amount":0,"reason":"x"}]`},
		{"non-object element", `["just a string"]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseReport(tc.content)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), "entry 0") {
				t.Fatalf("expected element index in error, got %q", err.Error())
			}
		})
	}
}

func TestParseReportNamesOffendingIndex(t *testing.T) {
	content := `[
		{"invoice_id":"ok.pdf","reimbursement_status":"Declined","reimbursable_amount":0,"reason":"Excluded by section 7."},
		{"invoice_id":"bad.pdf","reimbursement_status":"Sort Of","reimbursable_amount":0,"reason":"x"}
	]`
	_, err := ParseReport(content)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "entry 1") {
		t.Fatalf("expected entry 1 in error, got %q", err.Error())
	}
}

func TestParseReportToleratesExtraFields(t *testing.T) {
	content := `[{"invoice_id":"a.pdf","reimbursement_status":"Fully Reimbursed","reimbursable_amount":12,"reason":"Covered by section 1.","confidence":"high"}]`
	report, err := ParseReport(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Analyses[0].Amount != 12 {
		t.Fatalf("unexpected analysis: %+v", report.Analyses[0])
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusFullyReimbursed, StatusPartiallyReimbursed, StatusDeclined} {
		if !s.Valid() {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	if Status("Approved").Valid() {
		t.Fatalf("unexpected status accepted")
	}
}

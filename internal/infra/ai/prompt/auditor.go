package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/payflowhq/invoice-audit/internal/domain/audit"
)

// GetSystemPrompt provides strict directions and the verdict schema for JSON
// array output. The schema block comes from the same definition the response
// validator enforces.
func GetSystemPrompt() string {
	return fmt.Sprintf(`You are a precision-focused HR expense auditor. You review employee invoices against the company reimbursement policy and you must produce one valid JSON array only (no markdown, no commentary). Do not include code fences.

Workflow for every invoice:
1. Read the full reimbursement policy first; note caps, eligible categories, and exclusions.
2. Check the invoice line items against the policy rules that apply to them.
3. Classify the invoice as exactly one of: Fully Reimbursed, Partially Reimbursed, Declined.
4. Compute the reimbursable amount as a whole number, rounding down; use 0 when declining.
5. Justify the verdict in one or two sentences citing the specific policy section or rule that applies.

Requirements:
- Output must be a single JSON array with exactly one object per invoice, in the order the invoices are given.
- reimbursement_status must be exactly "Fully Reimbursed", "Partially Reimbursed", or "Declined".
- reimbursable_amount must be a non-negative integer.
- invoice_id must echo the invoice filename from the input.
- reason must name the policy section or rule behind the verdict.
- Cover every invoice; never skip, merge, or invent invoices.

Each array element must follow this schema:
%s`, verdictSchemaJSON())
}

func verdictSchemaJSON() string {
	b, err := json.MarshalIndent(audit.VerdictJSONSchema(), "", "  ")
	if err != nil {
		panic(err)
	}
	return string(b)
}

// GetUserPrompt combines the policy text and every invoice into the single
// analysis request. Identical inputs yield an identical prompt.
func GetUserPrompt(policyText string, invoices []audit.InvoiceText) string {
	var b strings.Builder
	b.WriteString("COMPANY REIMBURSEMENT POLICY:\n")
	b.WriteString(policyText)
	b.WriteString("\n\nINVOICES TO ANALYZE:\n")
	for _, inv := range invoices {
		b.WriteString(fmt.Sprintf("\n--- INVOICE: %s ---\n", inv.ID))
		b.WriteString(inv.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nAnalyze each invoice against the policy and respond with only the JSON array described in the system instructions.")
	return b.String()
}

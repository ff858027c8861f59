package audit

// Status enum for a single invoice verdict.
type Status string

const (
	StatusFullyReimbursed     Status = "Fully Reimbursed"
	StatusPartiallyReimbursed Status = "Partially Reimbursed"
	StatusDeclined            Status = "Declined"
)

// Valid reports whether s is one of the three verdict statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusFullyReimbursed, StatusPartiallyReimbursed, StatusDeclined:
		return true
	}
	return false
}

// InvoiceFile is one PDF member lifted out of the uploaded archive, in
// archive order. ID is the base filename.
type InvoiceFile struct {
	ID   string
	Data []byte
}

// InvoiceText is one invoice after text extraction.
type InvoiceText struct {
	ID   string
	Text string
}

// Analysis is the verdict for a single invoice.
type Analysis struct {
	InvoiceID string `json:"invoice_id"`
	Status    Status `json:"reimbursement_status"`
	Amount    int64  `json:"reimbursable_amount"`
	Reason    string `json:"reason"`
}

// Aggregate Root: Report, the full response for one analysis request.
type Report struct {
	Analyses               []Analysis `json:"analyses"`
	TotalInvoicesProcessed int        `json:"total_invoices_processed"`
}

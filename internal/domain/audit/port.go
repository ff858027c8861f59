package audit

import "context"

// TextExtractor port (interface for pulling plain text out of a PDF).
// Implementations own their tooling and timeouts; callers treat a returned
// error as the document being unreadable.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc []byte) (string, error)
}

package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrUnavailable covers every other provider failure: network, auth, 5xx,
// or an empty completion. Callers surface it as a retry-later condition.
var ErrUnavailable = errors.New("ai provider unavailable")

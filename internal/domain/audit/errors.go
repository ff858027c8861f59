package audit

import "errors"

// ErrBadInput indicates the caller sent an unusable request: missing or
// misnamed upload, broken archive, nothing to analyze.
var ErrBadInput = errors.New("invalid input")

// ErrDocument indicates text extraction failed for a named document.
var ErrDocument = errors.New("document extraction failed")

// ErrMalformedResponse indicates the model reply carried no parseable JSON array.
var ErrMalformedResponse = errors.New("malformed model response")

// ErrValidation indicates the model reply parsed but an element violated the
// verdict schema.
var ErrValidation = errors.New("model response failed validation")

package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// VerdictJSONSchema describes one element of the model's verdict array. The
// same schema is embedded in the system prompt and enforced on the reply, so
// the contract the model sees is the contract we check.
func VerdictJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"invoice_id": map[string]any{"type": "string", "minLength": 1},
			"reimbursement_status": map[string]any{
				"type": "string",
				"enum": []string{
					string(StatusFullyReimbursed),
					string(StatusPartiallyReimbursed),
					string(StatusDeclined),
				},
			},
			"reimbursable_amount": map[string]any{"type": "number", "minimum": 0},
			"reason": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"invoice_id", "reimbursement_status", "reimbursable_amount", "reason"},
	}
}

var verdictSchema = mustCompileSchema(VerdictJSONSchema())

func mustCompileSchema(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal verdict schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("verdict.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add verdict schema: %v", err))
	}
	schema, err := compiler.Compile("verdict.json")
	if err != nil {
		panic(fmt.Sprintf("compile verdict schema: %v", err))
	}
	return schema
}

// ParseReport validates the model reply and builds the response aggregate.
// The whole reply is rejected on the first bad element; partial reports are
// never returned.
func ParseReport(content string) (*Report, error) {
	raw, err := ExtractJSONArray(content)
	if err != nil {
		return nil, err
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	analyses := make([]Analysis, 0, len(elems))
	for i, elem := range elems {
		a, err := parseAnalysis(elem)
		if err != nil {
			return nil, fmt.Errorf("%w: invoice entry %d: %v", ErrValidation, i, err)
		}
		analyses = append(analyses, a)
	}
	return &Report{Analyses: analyses, TotalInvoicesProcessed: len(analyses)}, nil
}

func parseAnalysis(elem json.RawMessage) (Analysis, error) {
	var decoded any
	if err := json.Unmarshal(elem, &decoded); err != nil {
		return Analysis{}, err
	}
	if err := verdictSchema.Validate(decoded); err != nil {
		return Analysis{}, err
	}

	var v struct {
		InvoiceID string      `json:"invoice_id"`
		Status    string      `json:"reimbursement_status"`
		Amount    json.Number `json:"reimbursable_amount"`
		Reason    string      `json:"reason"`
	}
	if err := json.Unmarshal(elem, &v); err != nil {
		return Analysis{}, err
	}
	amount, err := truncateAmount(v.Amount)
	if err != nil {
		return Analysis{}, fmt.Errorf("reimbursable_amount: %v", err)
	}
	return Analysis{
		InvoiceID: v.InvoiceID,
		Status:    Status(v.Status),
		Amount:    amount,
		Reason:    v.Reason,
	}, nil
}

// truncateAmount keeps integer money semantics: fractional amounts round
// toward zero. The schema has already rejected negatives and non-numbers;
// values at or above 2^63 do not fit int64 and fail here instead of
// wrapping negative on conversion.
func truncateAmount(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	// float64(MaxInt64) rounds up to exactly 2^63, the first value that
	// cannot be represented.
	if f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v exceeds the largest supported amount", n)
	}
	return int64(f), nil
}

// ExtractJSONArray returns the first balanced JSON array in content. Models
// wrap answers in prose or code fences often enough that parsing the whole
// reply directly is the fallback, not the rule.
func ExtractJSONArray(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "[") && json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}
	for start := 0; ; {
		idx := strings.Index(content[start:], "[")
		if idx < 0 {
			break
		}
		idx += start
		if candidate, ok := scanArray(content, idx); ok {
			return candidate, nil
		}
		start = idx + 1
	}
	return "", fmt.Errorf("%w: no json array in model output", ErrMalformedResponse)
}

// scanArray walks content from the opening bracket at start, tracking string
// and escape state, and returns the balanced array if it is valid JSON.
func scanArray(input string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(input); i++ {
		ch := input[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				candidate := input[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}

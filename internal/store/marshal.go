package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/bprogram/internal/ir"
)

// marshalDetail converts an event detail to JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization. Details the
// canonical form rejects (fractional numbers) are stored as plain JSON with
// HTML escaping disabled. A nil detail is stored as NULL.
func marshalDetail(detail any) (sql.NullString, error) {
	if detail == nil {
		return sql.NullString{}, nil
	}
	if data, err := ir.MarshalCanonical(detail); err == nil {
		return sql.NullString{String: string(data), Valid: true}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(detail); err != nil {
		return sql.NullString{}, fmt.Errorf("marshal detail: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return sql.NullString{String: strings.TrimSpace(buf.String()), Valid: true}, nil
}

// unmarshalDetail parses stored JSON TEXT back to a detail value.
// Numbers decode as json.Number to avoid float64 precision loss for
// values > 2^53.
func unmarshalDetail(data sql.NullString) (any, error) {
	if !data.Valid {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(data.String))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	return v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	gferrors "github.com/vnykmshr/rateguard/pkg/common/errors"
)

// Record is one input question.
type Record struct {
	ID       string `json:"Question Id"`
	Question string `json:"Question"`
}

// UnmarshalJSON accepts the question ID as a string or a number.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       json.RawMessage `json:"Question Id"`
		Question string          `json:"Question"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Question = raw.Question
	r.ID = ""

	id := bytes.TrimSpace(raw.ID)
	switch {
	case len(id) == 0, bytes.Equal(id, []byte("null")):
	case id[0] == '"':
		if err := json.Unmarshal(id, &r.ID); err != nil {
			return fmt.Errorf("question id: %w", err)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(id, &n); err != nil {
			return fmt.Errorf("question id: %w", err)
		}
		r.ID = n.String()
	}
	return nil
}

// Prompt builds the generation prompt for the record.
func (r Record) Prompt() string {
	q := r.Question
	if q == "" {
		q = "No question provided."
	}
	return "Please generate related questions for: " + q
}

// LoadRecords decodes a JSON array of records. Records without an ID are
// rejected, as are duplicate IDs.
func LoadRecords(rd io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(rd).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if err := checkRecords(records); err != nil {
		return nil, err
	}
	return records, nil
}

// checkRecords rejects records without an ID and repeated IDs, since
// results are keyed by ID.
func checkRecords(records []Record) error {
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		field := fmt.Sprintf("records[%d].id", i)
		if rec.ID == "" {
			return gferrors.NewValidationError("batch", field, rec.ID, `missing "Question Id"`)
		}
		if _, dup := seen[rec.ID]; dup {
			return gferrors.NewValidationError("batch", field, rec.ID, "duplicate question id").
				WithHint("every record needs a unique ID")
		}
		seen[rec.ID] = struct{}{}
	}
	return nil
}

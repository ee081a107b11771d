package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	apperrors "github.com/kapu/blockext-go/pkg/errors"
	"go.uber.org/zap"
)

// Export serializes the canonical dataset as a flat JSON object of
// label -> examples.
func (m *Manager) Export() ([]byte, error) {
	data, err := json.Marshal(m.Canonical())
	if err != nil {
		return nil, fmt.Errorf("export dataset: %w", err)
	}
	return data, nil
}

// LabelExamples is one label of an imported document.
type LabelExamples struct {
	Label    string
	Examples []string
}

// ParseDocument validates an exported document and returns its labels in
// document order.
func ParseDocument(doc []byte) ([]LabelExamples, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))

	tok, err := dec.Token()
	if err != nil {
		return nil, apperrors.NewDataIntegrityError("Incorrect document form", "import", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, apperrors.NewDataIntegrityError("Incorrect document form", "import",
			fmt.Errorf("expected object, got %v", tok))
	}

	var out []LabelExamples
	seen := make(map[string]struct{})
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, apperrors.NewDataIntegrityError("Incorrect document form", "import", err)
		}
		label, _ := keyTok.(string)
		if label == "" {
			return nil, apperrors.NewDataIntegrityError("Incorrect document form", "import",
				fmt.Errorf("empty label name"))
		}

		var examples []string
		if err := dec.Decode(&examples); err != nil {
			return nil, apperrors.NewDataIntegrityError("Incorrect document form", "import",
				fmt.Errorf("label %q: %w", label, err))
		}

		if _, dup := seen[label]; dup {
			return nil, apperrors.NewDataIntegrityError("Incorrect document form", "import",
				fmt.Errorf("duplicate label %q", label))
		}
		seen[label] = struct{}{}
		out = append(out, LabelExamples{Label: label, Examples: examples})
	}

	if _, err := dec.Token(); err != nil {
		return nil, apperrors.NewDataIntegrityError("Incorrect document form", "import", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, apperrors.NewDataIntegrityError("Incorrect document form", "import",
			fmt.Errorf("trailing data after document"))
	}
	return out, nil
}

// Import replaces the dataset with a previously exported document. A
// malformed document leaves the dataset untouched.
func (m *Manager) Import(doc []byte) error {
	parsed, err := ParseDocument(doc)
	if err != nil {
		m.logger.Warn("Incorrect document form", zap.Error(err))
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked()
	for _, entry := range parsed {
		m.addLabelLocked(entry.Label)
		records := []Example{}
		for _, text := range entry.Examples {
			if containsText(records, OriginNew, text) {
				continue
			}
			records = append(records, newExample(text, OriginNew))
		}
		m.records[entry.Label] = records
	}

	m.logger.Info("Dataset imported", zap.Int("labels", len(parsed)))
	return nil
}

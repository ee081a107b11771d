package dataset

import (
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/kapu/blockext-go/pkg/errors"
)

func TestExportImportPreservesDocumentOrder(t *testing.T) {
	m := newTestManager()
	doc := []byte(`{"zebra":["stripes"],"apple":["red","green","red"]}`)

	if err := m.Import(doc); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if got := m.Labels(); !reflect.DeepEqual(got, []string{"zebra", "apple"}) {
		t.Fatalf("expected document order, got %q", got)
	}
	if got := m.Canonical()["apple"]; !reflect.DeepEqual(got, []string{"red", "green"}) {
		t.Fatalf("expected de-duplicated examples, got %q", got)
	}

	exported, err := m.Export()
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	other := newTestManager()
	if err := other.Import(exported); err != nil {
		t.Fatalf("re-import failed: %v", err)
	}
	if !reflect.DeepEqual(m.Canonical(), other.Canonical()) {
		t.Fatalf("canonical mismatch after re-import")
	}
}

func TestImportRejectsMalformedDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":     `hello`,
		"array":        `["a","b"]`,
		"non-string":   `{"a":[1,2]}`,
		"object value": `{"a":{"b":"c"}}`,
		"empty label":  `{"":["x"]}`,
		"duplicate":    `{"a":["x"],"a":["y"]}`,
		"trailing":     `{"a":["x"]} {}`,
		"truncated":    `{"a":["x"]`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			m := newTestManager()
			_, _ = m.NewExamples([]string{"keep"}, "existing")

			err := m.Import([]byte(doc))
			var integrity *apperrors.DataIntegrityError
			if !errors.As(err, &integrity) {
				t.Fatalf("expected DataIntegrityError, got %v", err)
			}
			if got := m.Labels(); !reflect.DeepEqual(got, []string{"existing"}) {
				t.Fatalf("dataset modified by malformed import: %q", got)
			}
		})
	}
}

package database

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/kapu/blockext-go/internal/domain"
	"github.com/kapu/blockext-go/pkg/errors"
)

func TestDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "blockext"}
	want := "host=db port=5432 user=u password=p dbname=blockext sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestRowsRoundTripPreservesOrder(t *testing.T) {
	data := domain.NewModelData()
	data.TextData["happy"] = []string{"yay", "great"}
	data.TextData["sad"] = []string{"meh"}
	data.ClassifierData["happy"] = []string{"loaded", "yay", "great"}
	data.ClassifierData["sad"] = []string{"meh"}

	rows := rowsFromModelData(data)
	if len(rows) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(rows))
	}

	// reverse to make sure ordering comes from Position, not input order
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	got := modelDataFromRows(rows)
	if !reflect.DeepEqual(got.TextData, data.TextData) {
		t.Fatalf("text data mismatch: %v", got.TextData)
	}
	if !reflect.DeepEqual(got.ClassifierData, data.ClassifierData) {
		t.Fatalf("classifier data mismatch: %v", got.ClassifierData)
	}
}

func TestSaveRequiresProject(t *testing.T) {
	store := NewDatasetStore(&ExampleRepository{})
	err := store.Save(context.Background(), "", domain.NewModelData())
	var validation *errors.ValidationError
	if !stderrors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

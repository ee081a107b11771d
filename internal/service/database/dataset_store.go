package database

import (
	"context"
	"sort"

	"github.com/kapu/blockext-go/internal/domain"
	"github.com/kapu/blockext-go/pkg/errors"
)

// DatasetStore persists classifier data as example rows.
type DatasetStore struct {
	repo *ExampleRepository
}

func NewDatasetStore(repo *ExampleRepository) *DatasetStore {
	return &DatasetStore{repo: repo}
}

func (s *DatasetStore) Save(ctx context.Context, projectID string, data domain.ModelData) error {
	if projectID == "" {
		return errors.NewValidationError("project id is required", "project_id", projectID)
	}
	rows := rowsFromModelData(data)
	if len(rows) == 0 {
		return s.repo.DeleteProject(ctx, projectID)
	}
	return s.repo.ReplaceProject(ctx, projectID, rows)
}

// Load returns nil without error when the project has no rows.
func (s *DatasetStore) Load(ctx context.Context, projectID string) (*domain.ModelData, error) {
	rows, err := s.repo.ListProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	data := modelDataFromRows(rows)
	return &data, nil
}

func rowsFromModelData(data domain.ModelData) []ExampleRow {
	var rows []ExampleRow
	appendKind := func(kind Kind, m map[string][]string) {
		labels := make([]string, 0, len(m))
		for label := range m {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			for i, text := range m[label] {
				rows = append(rows, ExampleRow{Label: label, Kind: kind, Position: i, Text: text})
			}
		}
	}
	appendKind(KindText, data.TextData)
	appendKind(KindClassifier, data.ClassifierData)
	return rows
}

// modelDataFromRows rebuilds both mappings. Labels with no examples are not
// representable as rows and come back absent.
func modelDataFromRows(rows []ExampleRow) domain.ModelData {
	data := domain.NewModelData()
	sorted := append([]ExampleRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		if sorted[i].Label != sorted[j].Label {
			return sorted[i].Label < sorted[j].Label
		}
		return sorted[i].Position < sorted[j].Position
	})
	for _, row := range sorted {
		switch row.Kind {
		case KindText:
			data.TextData[row.Label] = append(data.TextData[row.Label], row.Text)
		case KindClassifier:
			data.ClassifierData[row.Label] = append(data.ClassifierData[row.Label], row.Text)
		}
	}
	return data
}

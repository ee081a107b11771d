package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kapu/blockext-go/internal/util"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Kind separates the canonical examples from the working copy.
type Kind string

const (
	KindText       Kind = "text"
	KindClassifier Kind = "classifier"
)

// ExampleRow is one stored example. Position orders examples within a label.
type ExampleRow struct {
	Label    string
	Kind     Kind
	Position int
	Text     string
}

type ExampleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewExampleRepository(postgres *PostgresService, logger *zap.Logger) *ExampleRepository {
	return &ExampleRepository{
		db:     postgres.DB(),
		logger: util.OrNop(logger),
	}
}

// ReplaceProject swaps every stored example of projectID for rows in one transaction.
func (r *ExampleRepository) ReplaceProject(ctx context.Context, projectID string, rows []ExampleRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM classifier_examples WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to clear project examples: %w", err)
	}

	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("classifier_examples", "project_id", "label", "kind", "position", "text"))
		if err != nil {
			return fmt.Errorf("failed to prepare copy: %w", err)
		}
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, projectID, row.Label, string(row.Kind), row.Position, row.Text); err != nil {
				stmt.Close()
				return fmt.Errorf("failed to copy example: %w", err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to flush copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return fmt.Errorf("failed to close copy: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit examples: %w", err)
	}

	r.logger.Debug("Project examples replaced",
		zap.String("project_id", projectID),
		zap.Int("rows", len(rows)),
	)
	return nil
}

func (r *ExampleRepository) ListProject(ctx context.Context, projectID string) ([]ExampleRow, error) {
	query := `
		SELECT label, kind, position, text
		FROM classifier_examples
		WHERE project_id = $1
		ORDER BY kind, label, position
	`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query examples: %w", err)
	}
	defer rows.Close()

	var result []ExampleRow
	for rows.Next() {
		var row ExampleRow
		var kind string
		if err := rows.Scan(&row.Label, &kind, &row.Position, &row.Text); err != nil {
			r.logger.Warn("Failed to scan example", zap.Error(err))
			continue
		}
		row.Kind = Kind(kind)
		result = append(result, row)
	}

	return result, rows.Err()
}

func (r *ExampleRepository) DeleteProject(ctx context.Context, projectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classifier_examples WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete project examples: %w", err)
	}
	return nil
}

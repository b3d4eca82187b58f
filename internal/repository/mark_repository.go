package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/markaz-go-api/internal/models"
)

// MarkRepository manages persistence for evaluated mark entries. One row per
// (student, subject); re-entering a mark overwrites the previous row.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository constructs a MarkRepository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

const markUpsertQuery = `INSERT INTO marks (id, student_id, subject_id, ta, ce, total, status, created_at, updated_at)
        VALUES (:id, :student_id, :subject_id, :ta, :ce, :total, :status, :created_at, :updated_at)
        ON CONFLICT (student_id, subject_id)
        DO UPDATE SET ta = EXCLUDED.ta, ce = EXCLUDED.ce, total = EXCLUDED.total, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`

// Upsert writes one mark, replacing any previous entry for the pair.
func (r *MarkRepository) Upsert(ctx context.Context, mark *models.Mark) error {
	prepareMark(mark)
	if _, err := r.db.NamedExecContext(ctx, markUpsertQuery, mark); err != nil {
		return fmt.Errorf("upsert mark: %w", err)
	}
	return nil
}

// UpsertMany writes a batch of marks in one transaction so an atomic bulk
// entry either fully lands or not at all.
func (r *MarkRepository) UpsertMany(ctx context.Context, marks []models.Mark) error {
	if len(marks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk marks: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range marks {
		prepareMark(&marks[i])
		if _, err := tx.NamedExecContext(ctx, markUpsertQuery, &marks[i]); err != nil {
			return fmt.Errorf("upsert mark %s/%s: %w", marks[i].StudentID, marks[i].SubjectID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk marks: %w", err)
	}
	return nil
}

// FetchByStudents loads every mark belonging to the given students, keyed by
// student ID.
func (r *MarkRepository) FetchByStudents(ctx context.Context, studentIDs []string) (map[string][]models.Mark, error) {
	result := make(map[string][]models.Mark, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}
	const query = `SELECT id, student_id, subject_id, ta, ce, total, status, created_at, updated_at
        FROM marks WHERE student_id = ANY($1)`
	var rows []models.Mark
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("fetch marks: %w", err)
	}
	for _, row := range rows {
		result[row.StudentID] = append(result[row.StudentID], row)
	}
	return result, nil
}

// Delete removes one mark entry. sql.ErrNoRows when nothing matched.
func (r *MarkRepository) Delete(ctx context.Context, studentID, subjectID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM marks WHERE student_id = $1 AND subject_id = $2", studentID, subjectID)
	if err != nil {
		return fmt.Errorf("delete mark: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete mark rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func prepareMark(mark *models.Mark) {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = now
	}
	mark.UpdatedAt = now
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/markaz-go-api/internal/models"
)

// SubjectRepository manages persistence for subject configurations.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

const subjectColumns = "id, name, arabic_name, max_ta, max_ce, passing_total, faculty_name, subject_type, target_classes, enrolled_students, version, created_at, updated_at"

// List returns subjects matching the provided filters.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectConfig, int, error) {
	base := "FROM subjects"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("subject_type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Faculty != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(COALESCE(faculty_name, '')) = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.Faculty))
	}
	if filter.Class != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(target_classes)", len(args)+1))
		args = append(args, filter.Class)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(COALESCE(arabic_name, '')) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":         "name",
		"faculty_name": "faculty_name",
		"created_at":   "created_at",
	}
	if sortBy == "" {
		sortBy = "name"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", subjectColumns, base, column, order, size, offset)

	var subjects []models.SubjectConfig
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// ListAll returns every subject configuration, the working set for assignment
// resolution and view building.
func (r *SubjectRepository) ListAll(ctx context.Context) ([]models.SubjectConfig, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects ORDER BY name ASC", subjectColumns)
	var subjects []models.SubjectConfig
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list all subjects: %w", err)
	}
	return subjects, nil
}

// FindByID fetches a subject by ID.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.SubjectConfig, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE id = $1", subjectColumns)
	var subject models.SubjectConfig
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Create inserts a new subject record.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.SubjectConfig) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now
	subject.Version = 1
	const query = `INSERT INTO subjects (id, name, arabic_name, max_ta, max_ce, passing_total, faculty_name, subject_type, target_classes, enrolled_students, version, created_at, updated_at)
        VALUES (:id, :name, :arabic_name, :max_ta, :max_ce, :passing_total, :faculty_name, :subject_type, :target_classes, :enrolled_students, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies an existing subject. The write only lands when the stored
// version still matches the one the caller read; sql.ErrNoRows signals a
// concurrent modification.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.SubjectConfig) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, arabic_name = :arabic_name, max_ta = :max_ta, max_ce = :max_ce, passing_total = :passing_total, faculty_name = :faculty_name, subject_type = :subject_type, target_classes = :target_classes, enrolled_students = :enrolled_students, version = version + 1, updated_at = :updated_at WHERE id = :id AND version = :version`
	result, err := r.db.NamedExecContext(ctx, query, subject)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subject rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	subject.Version++
	return nil
}

// Delete removes a subject; marks referencing it cascade.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM subjects WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}

// DeleteMany removes several subjects at once and reports how many rows matched.
func (r *SubjectRepository) DeleteMany(ctx context.Context, ids []string) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM subjects WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete subjects: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete subjects rows: %w", err)
	}
	return int(affected), nil
}

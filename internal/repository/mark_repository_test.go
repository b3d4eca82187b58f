package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/markaz-go-api/internal/models"
)

func newMarkMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMarkRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newMarkMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectExec("INSERT INTO marks").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mark := &models.Mark{StudentID: "stu1", SubjectID: "sub1", MarkEntry: models.MarkEntry{TA: 20, CE: 15, Total: 35, Status: models.MarkStatusPassed}}
	err := repo.Upsert(context.Background(), mark)
	require.NoError(t, err)
	assert.NotEmpty(t, mark.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryUpsertManyTransactional(t *testing.T) {
	db, mock, cleanup := newMarkMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO marks").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO marks").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	marks := []models.Mark{
		{StudentID: "stu1", SubjectID: "sub1", MarkEntry: models.MarkEntry{TA: 20, CE: 15, Total: 35, Status: models.MarkStatusPassed}},
		{StudentID: "stu2", SubjectID: "sub1", MarkEntry: models.MarkEntry{TA: 20, CE: 14, Total: 34, Status: models.MarkStatusFailed}},
	}
	require.NoError(t, repo.UpsertMany(context.Background(), marks))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryUpsertManyEmpty(t *testing.T) {
	db, _, cleanup := newMarkMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	require.NoError(t, repo.UpsertMany(context.Background(), nil))
}

func TestMarkRepositoryFetchByStudents(t *testing.T) {
	db, mock, cleanup := newMarkMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "ta", "ce", "total", "status", "created_at", "updated_at"}).
		AddRow("m1", "stu1", "sub1", 20, 15, 35, "Passed", time.Now(), time.Now()).
		AddRow("m2", "stu1", "sub2", 40, 25, 65, "Passed", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM marks WHERE student_id = ANY($1)")).
		WithArgs(pq.Array([]string{"stu1", "stu2"})).
		WillReturnRows(rows)

	marks, err := repo.FetchByStudents(context.Background(), []string{"stu1", "stu2"})
	require.NoError(t, err)
	assert.Len(t, marks["stu1"], 2)
	assert.Empty(t, marks["stu2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newMarkMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM marks WHERE student_id = $1 AND subject_id = $2")).
		WithArgs("stu1", "sub1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "stu1", "sub1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

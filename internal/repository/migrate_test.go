package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMigrator(t *testing.T) (*Migrator, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator, err := NewMigrator(db, zap.NewNop())
	require.NoError(t, err)
	return migrator, mock
}

func TestMigrations_Embedded(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, "001_tracking_and_patient_records", migrations[0].Version)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS tracking_records")
	assert.Equal(t, "002_audit_logs", migrations[1].Version)
}

func TestMigrator_Up_FreshDatabase(t *testing.T) {
	migrator, mock := setupMigrator(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	for _, version := range []string{"001_tracking_and_patient_records", "002_audit_logs"} {
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
			WithArgs(version).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
	}

	applied, err := migrator.Up(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"001_tracking_and_patient_records", "002_audit_logs"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_Up_SkipsApplied(t *testing.T) {
	migrator, mock := setupMigrator(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("001_tracking_and_patient_records"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs("002_audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := migrator.Up(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"002_audit_logs"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_Up_UpToDate(t *testing.T) {
	migrator, mock := setupMigrator(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).
			AddRow("001_tracking_and_patient_records").
			AddRow("002_audit_logs"))

	applied, err := migrator.Up(context.Background())

	require.NoError(t, err)
	assert.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_Up_RollsBackOnFailure(t *testing.T) {
	migrator, mock := setupMigrator(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tracking_records").
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	applied, err := migrator.Up(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_tracking_and_patient_records")
	assert.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

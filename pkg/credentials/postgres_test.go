package credentials

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresStoreWithDB(db), mock
}

func TestPostgresGetByUsername(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"username", "password", "is_superuser"}).
		AddRow("alice", "$argon2id$hash", false)
	mock.ExpectQuery("SELECT username, password, is_superuser").
		WithArgs("alice").
		WillReturnRows(rows)

	cred, err := store.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
	assert.Equal(t, "$argon2id$hash", cred.Secret)
	assert.False(t, cred.IsSuperuser)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByUsernameNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT username, password, is_superuser").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	cred, err := store.GetByUsername(context.Background(), "ghost")
	assert.Nil(t, cred)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresCreate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO mqtt_users").
		WithArgs("alice", "$argon2id$hash", true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Create(context.Background(), "alice", "$argon2id$hash", true)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO mqtt_users").
		WithArgs("alice", "$argon2id$hash", false).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Create(context.Background(), "alice", "$argon2id$hash", false)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPostgresDelete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM mqtt_users").
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Delete(context.Background(), "alice")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM mqtt_users").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresList(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"username", "password", "is_superuser"}).
		AddRow("alice", "h1", false).
		AddRow("bob", "h2", true)
	mock.ExpectQuery("SELECT username, password, is_superuser").
		WillReturnRows(rows)

	creds, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "alice", creds[0].Username)
	assert.Equal(t, "bob", creds[1].Username)
	assert.True(t, creds[1].IsSuperuser)
}

func TestPostgresEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS mqtt_users").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.EnsureSchema(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStoreWithDB(db)
	mock.ExpectPing()

	require.NoError(t, store.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

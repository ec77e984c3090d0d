package scheduling

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"medlink-server/internal/apperr"
	"medlink-server/internal/models"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)

	return NewGormStore(db), mock
}

func TestGormStore_GetRequestNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `appointment_requests` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetRequest(context.Background(), "req-1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_DriverErrorIsWrapped(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `appointments` WHERE id = ?")).
		WillReturnError(boom)

	_, err := store.GetAppointment(context.Background(), "apt-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, apperr.Kind(""), apperr.KindOf(err))
}

func TestGormStore_UpdateMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `appointment_requests` SET `status`=?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.UpdateRequestStatus(context.Background(), "req-1", models.RequestAccepted)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_WithDoctorLockTakesRowLock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id` FROM `users` WHERE id = ?") + ".*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-1"))
	mock.ExpectCommit()

	called := false
	err := store.WithDoctorLock(context.Background(), "doc-1", func(tx Store) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_WithDoctorLockRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	failure := errors.New("write failed")

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-1"))
	mock.ExpectRollback()

	err := store.WithDoctorLock(context.Background(), "doc-1", func(tx Store) error {
		return failure
	})
	assert.ErrorIs(t, err, failure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_WithDoctorLockUnknownDoctor(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.WithDoctorLock(context.Background(), "ghost", func(tx Store) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

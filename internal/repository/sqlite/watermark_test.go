package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermarkGetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT value FROM watermarks").
		WithArgs("brevo_events").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	repo := NewWatermarkRepo(db)
	_, ok, err := repo.Get(context.Background(), "brevo_events")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWatermarkRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mark := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO watermarks").
		WithArgs("brevo_events", mark).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT value FROM watermarks").
		WithArgs("brevo_events").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(mark))

	repo := NewWatermarkRepo(db)
	require.NoError(t, repo.Set(context.Background(), "brevo_events", mark))

	got, ok, err := repo.Get(context.Background(), "brevo_events")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(mark))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package store

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestPostgresStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec(`INSERT INTO applicants`).
		WithArgs(int64(123), int64(456), int64(789)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Create(context.Background(), 123, int64Ptr(456), int64Ptr(789))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateNilIdentifiers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec(`INSERT INTO applicants`).
		WithArgs(int64(123), nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Create(context.Background(), 123, nil, nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec(`INSERT INTO applicants`).
		WithArgs(int64(123), nil, nil).
		WillReturnError(&pq.Error{Code: "23505"})

	err = store.Create(context.Background(), 123, nil, nil)
	assert.Error(t, err)
}

func TestPostgresStore_UpdatePartialFields(t *testing.T) {
	tests := []struct {
		name      string
		upd       Update
		wantQuery string
		wantArgs  []driver.Value
	}{
		{
			name:      "status only",
			upd:       Update{StatusID: int64Ptr(42)},
			wantQuery: `UPDATE applicants SET status_id = \$1 WHERE id = \$2`,
			wantArgs:  []driver.Value{int64(42), int64(1)},
		},
		{
			name:      "applicant and files",
			upd:       Update{ApplicantID: int64Ptr(7), FileIDs: []int64{10, 11}},
			wantQuery: `UPDATE applicants SET applicant_id = \$1, file_ids = \$2 WHERE id = \$3`,
			wantArgs:  []driver.Value{int64(7), pq.Int64Array{10, 11}, int64(1)},
		},
		{
			name:      "sync error flag",
			upd:       Update{LastSyncError: syncErrorPtr(SyncErrorNoRejectionReason)},
			wantQuery: `UPDATE applicants SET last_sync_error = \$1 WHERE id = \$2`,
			wantArgs:  []driver.Value{"no_rejection_reason", int64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			store := NewPostgresStore(db)

			mock.ExpectExec(tt.wantQuery).
				WithArgs(tt.wantArgs...).
				WillReturnResult(sqlmock.NewResult(0, 1))

			err = store.Update(context.Background(), 1, tt.upd)
			assert.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_UpdateNoFieldsIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	err = store.Update(context.Background(), 1, Update{})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	rows := sqlmock.NewRows([]string{"id", "applicant_id", "status_id", "file_ids", "last_sync_error"}).
		AddRow(int64(1), int64(55), int64(99), pq.Int64Array{3, 4}, "no_rejection_reason")

	mock.ExpectQuery(`SELECT id, applicant_id, status_id, file_ids, last_sync_error FROM applicants WHERE id`).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	a, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	require.NotNil(t, a.ApplicantID)
	assert.Equal(t, int64(55), *a.ApplicantID)
	require.NotNil(t, a.StatusID)
	assert.Equal(t, int64(99), *a.StatusID)
	assert.Equal(t, []int64{3, 4}, a.FileIDs)
	require.NotNil(t, a.LastSyncError)
	assert.Equal(t, SyncErrorNoRejectionReason, *a.LastSyncError)
}

func TestPostgresStore_GetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery(`SELECT id, applicant_id, status_id, file_ids, last_sync_error FROM applicants WHERE id`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "applicant_id", "status_id", "file_ids", "last_sync_error"}))

	_, err = store.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_GetAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	rows := sqlmock.NewRows([]string{"id", "applicant_id", "status_id", "file_ids", "last_sync_error"}).
		AddRow(int64(1), int64(55), nil, nil, nil).
		AddRow(int64(2), nil, int64(99), pq.Int64Array{8}, nil)

	mock.ExpectQuery(`SELECT id, applicant_id, status_id, file_ids, last_sync_error FROM applicants`).
		WillReturnRows(rows)

	all, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(55), *all[0].ApplicantID)
	assert.Nil(t, all[0].StatusID)
	assert.Nil(t, all[1].ApplicantID)
	assert.Equal(t, int64(99), *all[1].StatusID)
	assert.Equal(t, []int64{8}, all[1].FileIDs)
}

func syncErrorPtr(se SyncError) *SyncError { return &se }

package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func newMockSQL(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, mock
}

func TestRestaurantRepo_InsertIgnore(t *testing.T) {
	db, mock := newMockGorm(t)
	repo := NewRestaurantRepo(db)
	item := &model.Restaurant{ID: "r-1", PlaceID: "p1", Name: "A", Address: "Seoul"}

	mock.ExpectExec("INSERT IGNORE INTO `restaurant`").WillReturnResult(sqlmock.NewResult(0, 1))
	inserted, err := repo.InsertIgnore(context.Background(), item)
	require.NoError(t, err)
	require.True(t, inserted)

	mock.ExpectExec("INSERT IGNORE INTO `restaurant`").WillReturnResult(sqlmock.NewResult(0, 0))
	inserted, err = repo.InsertIgnore(context.Background(), item)
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepo_ListAndMark(t *testing.T) {
	db, mock := newMockGorm(t)
	repo := NewOutboxRepo(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "restaurant_id", "payload", "is_processed", "created_at"}).
		AddRow(int64(7), "r-1", "a1.json", false, now)
	mock.ExpectQuery("SELECT \\* FROM `outbox` WHERE is_processed = \\? ORDER BY created_at LIMIT").WillReturnRows(rows)
	list, err := repo.ListUnprocessed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "a1.json", list[0].Payload)

	mock.ExpectExec("UPDATE `outbox` SET `is_processed`=\\? WHERE id = \\?").
		WithArgs(true, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkProcessed(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVectorRepo_InsertIgnore(t *testing.T) {
	db, mock := newMockSQL(t)
	repo := NewVectorRepo(db)
	vec := pgvector.NewVector([]float32{0, 0})
	item := &model.RestaurantVector{
		ID: "r-1", PlaceID: "p1",
		CompanionVector: vec, FoodVector: vec, PurposeVector: vec, VibeVector: vec,
	}

	mock.ExpectExec("INSERT INTO restaurant_vector .* ON CONFLICT \\(place_id\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	inserted, err := repo.InsertIgnore(context.Background(), db, item)
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVectorRepo_FindIDs(t *testing.T) {
	db, mock := newMockSQL(t)
	repo := NewVectorRepo(db)

	mock.ExpectQuery("SELECT id FROM restaurant_vector WHERE").
		WillReturnError(sql.ErrNoRows)
	_, err := repo.FindIDByPlaceID(context.Background(), "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	mock.ExpectQuery("SELECT id, place_id FROM restaurant_vector WHERE place_id IN \\(.+\\)").
		WithArgs("p1", "p2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "place_id"}).AddRow("r-1", "p1"))
	ids, err := repo.FindIDsByPlaceIDs(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"p1": "r-1"}, ids)

	ids, err = repo.FindIDsByPlaceIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepo_InsertIgnore(t *testing.T) {
	db, mock := newMockSQL(t)
	repo := NewReviewRepo(db)
	vec := pgvector.NewVector([]float32{1})
	item := &model.CrawlingReview{
		Hash: "h", Content: "good", RestaurantID: "r-1",
		VibeVector: vec, FoodVector: vec, CompanionVector: vec, PurposeVector: vec,
	}

	mock.ExpectExec("INSERT INTO crawling_review .* ON CONFLICT \\(hash\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	inserted, err := repo.InsertIgnore(context.Background(), nil, item)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRestaurantRepo_FindIDByPlaceID(t *testing.T) {
	db, mock := newMockGorm(t)
	repo := NewRestaurantRepo(db)

	mock.ExpectQuery("SELECT `id` FROM `restaurant` WHERE place_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-1"))
	id, err := repo.FindIDByPlaceID(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "r-1", id)

	mock.ExpectQuery("SELECT `id` FROM `restaurant` WHERE place_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.FindIDByPlaceID(context.Background(), "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

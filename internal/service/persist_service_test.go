package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/xxxsen/wellmeet-pipeline/internal/artifact"
	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	"github.com/xxxsen/wellmeet-pipeline/internal/objstore"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
	"github.com/xxxsen/wellmeet-pipeline/internal/repo"
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

func newMockPostgres(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, mock
}

func newPersist(t *testing.T, store objstore.Store) (*PersistService, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()
	gdb, mysqlMock := newMockGorm(t)
	pdb, pgMock := newMockPostgres(t)
	svc := NewPersistService(store, testLayout, repo.NewRestaurantRepo(gdb), repo.NewVectorRepo(pdb), repo.NewReviewRepo(pdb), 3)
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return svc, mysqlMock, pgMock
}

func TestPersist_SaveRestaurantsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewLocal(t.TempDir(), "bucket")
	putJSON(t, store, "restaurant/k.json", []map[string]interface{}{
		{"placeId": "p1", "name": "A", "address": "Seoul", "latitude": 37.5, "longitude": 127.0},
		{"placeId": "p2", "name": "B"},
		{"placeId": "p3", "name": "C", "address": "Busan"},
	})
	svc, mysqlMock, _ := newPersist(t, store)

	mysqlMock.ExpectExec("INSERT IGNORE INTO `restaurant`").WillReturnResult(sqlmock.NewResult(0, 1))
	mysqlMock.ExpectExec("INSERT IGNORE INTO `restaurant`").WillReturnResult(sqlmock.NewResult(0, 0))
	res, err := svc.SaveRestaurants(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 1, res.Saved)
	require.Equal(t, 1, res.Existing)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, []string{"p1", "p3"}, res.PlaceIDs)
	require.NoError(t, mysqlMock.ExpectationsWereMet())
}

func TestPersist_SaveVector(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewLocal(t.TempDir(), "bucket")
	doc := model.RestaurantArtifact{
		PlaceID:    "p1",
		Latitude:   37.5,
		Longitude:  127.0,
		Embeddings: map[string][]float32{"companion": {1, 2, 3}},
		Reviews: []model.Review{
			{ID: "a", Content: "good"},
			{ID: "b", Content: "good"},
			{ID: "c", Content: "tasty", Embeddings: map[string][]float32{"food": {1, 1, 1}}},
		},
	}
	_, _, err := artifact.WriteGzipJSON(ctx, store, objstore.Location{Key: "vector/p1.json"}, doc)
	require.NoError(t, err)
	svc, _, pgMock := newPersist(t, store)

	pgMock.ExpectBegin()
	pgMock.ExpectExec("INSERT INTO restaurant_vector .* ON CONFLICT \\(place_id\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	pgMock.ExpectExec("INSERT INTO crawling_review .* ON CONFLICT \\(hash\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	pgMock.ExpectExec("INSERT INTO crawling_review .* ON CONFLICT \\(hash\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	pgMock.ExpectCommit()

	res, err := svc.SaveVector(ctx, model.QueueMessage{S3Key: "p1.json", RestaurantID: "r-1"})
	require.NoError(t, err)
	require.Equal(t, "r-1", res.RestaurantID)
	require.True(t, res.VectorInserted)
	require.Equal(t, 1, res.Reviews)
	require.Equal(t, 1, res.Duplicates)
	require.NoError(t, pgMock.ExpectationsWereMet())
}

func TestPersist_SaveVectorRollsBack(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewLocal(t.TempDir(), "bucket")
	putJSON(t, store, "vector/p1.json", model.RestaurantArtifact{PlaceID: "p1", Reviews: []model.Review{{ID: "a", Content: "x"}}})
	svc, _, pgMock := newPersist(t, store)

	pgMock.ExpectBegin()
	pgMock.ExpectExec("INSERT INTO restaurant_vector").WillReturnResult(sqlmock.NewResult(0, 1))
	pgMock.ExpectExec("INSERT INTO crawling_review").WillReturnError(sql.ErrConnDone)
	pgMock.ExpectRollback()

	_, err := svc.SaveVector(ctx, model.QueueMessage{S3Key: "p1.json", RestaurantID: "r-1"})
	require.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, pgMock.ExpectationsWereMet())

	_, err = svc.SaveVector(ctx, model.QueueMessage{})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestPersist_SaveReviewsSkipsUnknownPlace(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewLocal(t.TempDir(), "bucket")
	reviews := []model.Review{
		{ID: "a", Content: "good", PlaceID: "p1", Embeddings: map[string][]float32{"vibe": {1, 2, 3}}},
		{ID: "b", Content: "good", PlaceID: "p1"},
		{ID: "c", Content: "meh", PlaceID: "p2"},
		{ID: "d", Content: "orphan"},
	}
	_, _, err := artifact.WriteGzipJSON(ctx, store, objstore.Location{Key: "embedding/k.json.gz"}, reviews)
	require.NoError(t, err)
	svc, _, pgMock := newPersist(t, store)

	pgMock.ExpectQuery("SELECT id, place_id FROM restaurant_vector WHERE place_id IN").
		WithArgs("p1", "p2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "place_id"}).AddRow("r-1", "p1"))
	pgMock.ExpectExec("INSERT INTO crawling_review .* ON CONFLICT \\(hash\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := svc.SaveReviews(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	require.Equal(t, []string{"p2"}, res.SkippedPlaces)
	require.NoError(t, pgMock.ExpectationsWereMet())

	id, ok := svc.placeCache.Get("p1")
	require.True(t, ok)
	require.Equal(t, "r-1", id)
}

func TestPersist_ZeroVectorDefault(t *testing.T) {
	svc := &PersistService{dimensions: 768}
	rows := svc.crawlingReviews([]model.Review{
		{Content: "b", Embeddings: map[string][]float32{"vibe": make([]float32, 768)}},
		{Content: "a"},
		{Content: "  "},
		{Content: "a"},
	}, "r-1")
	require.Len(t, rows, 2)
	require.Less(t, rows[0].Hash, rows[1].Hash)
	for _, row := range rows {
		food := row.FoodVector.Slice()
		require.Len(t, food, 768)
		for _, v := range food {
			require.Zero(t, v)
		}
		require.Equal(t, "r-1", row.RestaurantID)
	}
	require.Len(t, svc.vector([]float32{1, 2}).Slice(), 768)
}

func TestContentHash(t *testing.T) {
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", ContentHash("hello"))
	require.Equal(t, ContentHash("same"), ContentHash("same"))
}

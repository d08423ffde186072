package retrieval

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripweaver/tripweaver/internal/types"
)

var candidateColumns = []string{
	"id", "name", "category", "city", "district", "address", "description",
	"features", "latitude", "longitude", "rating", "rating_count", "similarity",
}

func TestSimilarCandidatesScansRows(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	id := uuid.New()
	rows := pgxmock.NewRows(candidateColumns).
		AddRow(id, "赤崁樓", "cultural", "台南市", "中西區", "民族路二段212號",
			"國定古蹟", []string{"古蹟", "夜景"}, 22.9975, 120.2025, 4.4, int64(32000), 0.91)

	mockPool.ExpectQuery("SELECT").
		WithArgs(pgxmock.AnyArg(), "台南市", "food", 0.5, 8).
		WillReturnRows(rows)

	repo := NewRepository(mockPool, testLogger())
	results, err := repo.SimilarCandidates(context.Background(), []float32{0.1, 0.2}, types.CandidateFilter{
		City:            "台南市",
		ExcludeCategory: types.CategoryFood,
		Threshold:       0.5,
		Limit:           8,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "赤崁樓", got.Name)
	assert.Equal(t, types.CategoryCultural, got.Category)
	assert.Equal(t, "中西區", got.District)
	assert.Equal(t, []string{"古蹟", "夜景"}, got.Features)
	assert.InDelta(t, 0.91, got.Similarity, 1e-9)
	require.NotNil(t, got.Rating)
	assert.InDelta(t, 4.4, *got.Rating, 1e-9)
	require.NotNil(t, got.RatingCount)
	assert.Equal(t, 32000, *got.RatingCount)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCandidatesWithoutEmbeddings(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	id := uuid.New()
	columns := []string{
		"id", "name", "category", "city", "district", "address", "description",
		"features", "latitude", "longitude", "rating", "rating_count",
	}
	rows := pgxmock.NewRows(columns).
		AddRow(id, "安平古堡", "cultural", "台南市", "安平區", "國勝路82號",
			"荷蘭時期建立的堡壘", []string{"古蹟"}, 23.0016, 120.1606, 4.3, int64(28000))

	mockPool.ExpectQuery("SELECT").WithArgs(20).WillReturnRows(rows)

	repo := NewRepository(mockPool, testLogger())
	results, err := repo.CandidatesWithoutEmbeddings(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "安平古堡", results[0].Name)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestUpdateCandidateEmbedding(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	id := uuid.New()
	mockPool.ExpectExec("UPDATE candidates").
		WithArgs(pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewRepository(mockPool, testLogger())
	err = repo.UpdateCandidateEmbedding(context.Background(), id, []float32{0.1, 0.2})
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())

	t.Run("missing row is an error", func(t *testing.T) {
		mockPool.ExpectExec("UPDATE candidates").
			WithArgs(pgxmock.AnyArg(), id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateCandidateEmbedding(context.Background(), id, []float32{0.1})
		assert.Error(t, err)
	})
}

func TestBuildCandidateEmbeddingText(t *testing.T) {
	rating := 4.3
	c := types.Candidate{
		Name:        "安平古堡",
		Category:    types.CategoryCultural,
		City:        "台南市",
		District:    "安平區",
		Description: "荷蘭時期建立的堡壘",
		Features:    []string{"古蹟", "夕陽"},
		Rating:      &rating,
	}
	text := BuildCandidateEmbeddingText(c)
	assert.Contains(t, text, "安平古堡")
	assert.Contains(t, text, "cultural")
	assert.Contains(t, text, "台南市")
	assert.Contains(t, text, "安平區")
	assert.Contains(t, text, "夕陽")
}

func TestSimilarCandidatesEmptyResult(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectQuery("SELECT").
		WithArgs(pgxmock.AnyArg(), 0.999, 10).
		WillReturnRows(pgxmock.NewRows(candidateColumns))

	repo := NewRepository(mockPool, testLogger())
	results, err := repo.SimilarCandidates(context.Background(), []float32{0.1}, types.CandidateFilter{
		Threshold: 0.999,
		Limit:     10,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

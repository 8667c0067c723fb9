package database

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiitris/kiitris-backend/internal/models"
)

func newMockRepository(t *testing.T) (*resultRepositoryImpl, *sql.DB, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := &resultRepositoryImpl{db: db, now: func() time.Time { return now }}
	return repo, db, mock, now
}

func TestCreateResult(t *testing.T) {
	repo, _, mock, now := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO results")).
		WithArgs("user-1", 1240, 12, 1, models.TierBronze, `{"type":"tetris_score"}`, "", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(17)))

	result := &models.Result{
		UserID: "user-1",
		Score:  1240,
		Lines:  12,
		Level:  1,
		Tier:   models.TierBronze,
		Memo:   `{"type":"tetris_score"}`,
	}
	require.NoError(t, repo.CreateResult(nil, result))
	assert.Equal(t, int64(17), result.ID)
	assert.Equal(t, now, result.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateResult_InTransaction(t *testing.T) {
	repo, db, mock, now := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO results")).
		WithArgs("user-2", 0, 0, 0, models.TierBronze, "{}", "0xabc", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	result := &models.Result{UserID: "user-2", Tier: models.TierBronze, Memo: "{}", TxHash: "0xabc"}
	require.NoError(t, repo.CreateResult(tx, result))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateResult_Error(t *testing.T) {
	repo, _, mock, _ := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO results")).
		WillReturnError(errors.New("connection reset"))

	err := repo.CreateResult(nil, &models.Result{UserID: "user-1"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGetTopResults(t *testing.T) {
	repo, _, mock, now := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "score", "lines", "level", "tier", "tx_hash", "created_at", "rank"}).
		AddRow(int64(3), "user-a", 12000, 40, 4, models.TierGold, "0x1", now, 1).
		AddRow(int64(5), "user-b", 300, 3, 0, models.TierBronze, "", now.Add(time.Minute), 2)
	mock.ExpectQuery(regexp.QuoteMeta("FROM results")).WithArgs(10).WillReturnRows(rows)

	results, err := repo.GetTopResults(10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "user-a", results[0].UserID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, models.TierGold, results[0].Tier)
	assert.Equal(t, 2, results[1].Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTopResults_Empty(t *testing.T) {
	repo, _, mock, _ := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "score", "lines", "level", "tier", "tx_hash", "created_at", "rank"})
	mock.ExpectQuery(regexp.QuoteMeta("FROM results")).WithArgs(50).WillReturnRows(rows)

	results, err := repo.GetTopResults(50)
	require.NoError(t, err)
	assert.NotNil(t, results, "空のランキングはnullではなく空配列にする")
	assert.Empty(t, results)
}

func TestGetUserBestScore_NoRows(t *testing.T) {
	repo, _, mock, _ := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	best, err := repo.GetUserBestScore("nobody")
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestGetUserRanking(t *testing.T) {
	repo, _, mock, now := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1")).
		WithArgs("user-b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "score", "lines", "level", "tier", "memo", "tx_hash", "created_at"}).
			AddRow(int64(5), "user-b", 6000, 30, 3, models.TierSilver, "{}", "", now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) + 1")).
		WithArgs(6000, now).
		WillReturnRows(sqlmock.NewRows([]string{"rank"}).AddRow(4))

	ranking, err := repo.GetUserRanking("user-b")
	require.NoError(t, err)
	require.NotNil(t, ranking)
	assert.Equal(t, 4, ranking.Rank)
	assert.Equal(t, 6000, ranking.Score)
	assert.Equal(t, models.TierSilver, ranking.Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserRanking_NoScore(t *testing.T) {
	repo, _, mock, _ := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ranking, err := repo.GetUserRanking("nobody")
	require.NoError(t, err)
	assert.Nil(t, ranking)
}

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kiitris/kiitris-backend/internal/models"
)

// ResultRepository はゲーム結果関連のデータベース操作を定義するインターフェースです。
type ResultRepository interface {
	// CreateResult は新しいゲーム結果レコードを作成し、IDと作成日時を result に設定します
	CreateResult(tx *sql.Tx, result *models.Result) error

	// GetTopResults は上位N件の結果を取得します（ランキング用）
	GetTopResults(limit int) ([]models.ResultResponse, error)

	// GetUserBestScore は指定したユーザーの最高スコアを取得します
	GetUserBestScore(userID string) (*models.Result, error)

	// GetUserRanking は指定したユーザーの現在のランキング順位を取得します
	GetUserRanking(userID string) (*models.ResultResponse, error)
}

// resultRepositoryImpl はResultRepositoryインターフェースの実装です。
type resultRepositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

// NewResultRepository はResultRepositoryの新しいインスタンスを作成します。
func NewResultRepository(db *sql.DB) ResultRepository {
	return &resultRepositoryImpl{db: db, now: time.Now}
}

const insertResultQuery = `INSERT INTO results (user_id, score, lines, level, tier, memo, tx_hash, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

// CreateResult は新しいゲーム結果レコードを作成します。
func (r *resultRepositoryImpl) CreateResult(tx *sql.Tx, result *models.Result) error {
	now := r.now()
	args := []interface{}{
		result.UserID, result.Score, result.Lines, result.Level,
		result.Tier, result.Memo, result.TxHash, now,
	}

	// トランザクションの有無を確認して適切にクエリを実行
	var row *sql.Row
	if tx != nil {
		row = tx.QueryRow(insertResultQuery, args...)
	} else {
		row = r.db.QueryRow(insertResultQuery, args...)
	}

	var id int64
	if err := row.Scan(&id); err != nil {
		return fmt.Errorf("ゲーム結果レコードの作成に失敗しました: %w", err)
	}

	result.ID = id
	result.CreatedAt = now
	return nil
}

// GetTopResults は上位N件の結果を取得します（ランキング用）。
func (r *resultRepositoryImpl) GetTopResults(limit int) ([]models.ResultResponse, error) {
	query := `
		SELECT
			id, user_id, score, lines, level, tier, tx_hash, created_at,
			ROW_NUMBER() OVER (ORDER BY score DESC, created_at ASC) as rank
		FROM results
		ORDER BY score DESC, created_at ASC
		LIMIT $1
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("ゲーム結果取得に失敗しました: %w", err)
	}
	defer rows.Close()

	results := []models.ResultResponse{}
	for rows.Next() {
		var res models.ResultResponse
		err := rows.Scan(&res.ID, &res.UserID, &res.Score, &res.Lines, &res.Level,
			&res.Tier, &res.TxHash, &res.CreatedAt, &res.Rank)
		if err != nil {
			return nil, fmt.Errorf("ゲーム結果データのスキャンに失敗しました: %w", err)
		}
		results = append(results, res)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ゲーム結果取得中にエラーが発生しました: %w", err)
	}

	return results, nil
}

// GetUserBestScore は指定したユーザーの最高スコアを取得します。
// スコアが1件もない場合は nil, nil を返します。
func (r *resultRepositoryImpl) GetUserBestScore(userID string) (*models.Result, error) {
	query := `
		SELECT id, user_id, score, lines, level, tier, memo, tx_hash, created_at
		FROM results
		WHERE user_id = $1
		ORDER BY score DESC, created_at ASC
		LIMIT 1
	`

	var res models.Result
	err := r.db.QueryRow(query, userID).Scan(&res.ID, &res.UserID, &res.Score, &res.Lines,
		&res.Level, &res.Tier, &res.Memo, &res.TxHash, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの最高スコア取得に失敗しました: %w", err)
	}

	return &res, nil
}

// GetUserRanking は指定したユーザーの現在のランキング順位を取得します。
func (r *resultRepositoryImpl) GetUserRanking(userID string) (*models.ResultResponse, error) {
	// ユーザーの最高スコアを先に取得
	best, err := r.GetUserBestScore(userID)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, nil
	}

	// そのスコアでの順位を計算
	query := `
		SELECT COUNT(*) + 1 as rank
		FROM results
		WHERE score > $1 OR (score = $1 AND created_at < $2)
	`

	var rank int
	if err := r.db.QueryRow(query, best.Score, best.CreatedAt).Scan(&rank); err != nil {
		return nil, fmt.Errorf("ユーザーランキング順位の計算に失敗しました: %w", err)
	}

	return &models.ResultResponse{
		ID:        best.ID,
		UserID:    best.UserID,
		Score:     best.Score,
		Lines:     best.Lines,
		Level:     best.Level,
		Tier:      best.Tier,
		TxHash:    best.TxHash,
		CreatedAt: best.CreatedAt,
		Rank:      rank,
	}, nil
}

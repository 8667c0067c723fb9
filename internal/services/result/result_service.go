package result

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kiitris/kiitris-backend/internal/database"
	"github.com/kiitris/kiitris-backend/internal/models"
)

// ErrStorageUnavailable はデータベースなしで起動しているため結果を読み書きできないことを表します。
var ErrStorageUnavailable = errors.New("result storage is not configured")

// ResultService はゲーム結果関連のビジネスロジックを定義するインターフェースです。
type ResultService interface {
	// RecordResult はサーバー上のセッションで終わったゲームの結果を保存します
	RecordResult(ctx context.Context, sessionID, userID string, result models.GameResult) error
	// SubmitMemo はクライアントが外部に送信済みのスコアメモを記録します
	SubmitMemo(ctx context.Context, userID, memo, txHash string) (*models.Result, error)
	// GetLeaderboard は上位 limit 件のランキングを返します
	GetLeaderboard(limit int) ([]models.ResultResponse, error)
	// GetUserRanking はユーザーの最高スコアと順位を返します。記録がなければ nil です
	GetUserRanking(userID string) (*models.ResultResponse, error)
}

// resultServiceImpl はResultServiceインターフェースの実装です。
type resultServiceImpl struct {
	db   *sql.DB
	repo database.ResultRepository
	now  func() time.Time
}

// NewResultService はResultServiceの新しいインスタンスを作成します。
// db と repo が nil の場合、結果はログに出すだけで保存しません。
func NewResultService(db *sql.DB, repo database.ResultRepository) ResultService {
	return &resultServiceImpl{db: db, repo: repo, now: time.Now}
}

func (s *resultServiceImpl) RecordResult(ctx context.Context, sessionID, userID string, result models.GameResult) error {
	memo, err := models.NewScoreMemo(result, s.now()).Encode()
	if err != nil {
		return fmt.Errorf("スコアメモの作成に失敗しました: %w", err)
	}

	if s.repo == nil {
		log.Printf("[ResultService] Storage disabled, session %s (user %s) finished: %s", sessionID, userID, memo)
		return nil
	}

	entry := &models.Result{
		UserID: userID,
		Score:  result.Score,
		Lines:  result.Lines,
		Level:  result.Level,
		Tier:   models.RewardTierForScore(result.Score),
		Memo:   memo,
	}
	if err := s.store(ctx, entry); err != nil {
		return err
	}
	log.Printf("[ResultService] Recorded result %d for user %s: score=%d tier=%s", entry.ID, userID, entry.Score, entry.Tier)
	return nil
}

func (s *resultServiceImpl) SubmitMemo(ctx context.Context, userID, memo, txHash string) (*models.Result, error) {
	parsed, err := models.ParseScoreMemo(memo)
	if err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, ErrStorageUnavailable
	}

	entry := &models.Result{
		UserID: userID,
		Score:  parsed.Score,
		Lines:  parsed.Lines,
		Level:  parsed.Level,
		Tier:   models.RewardTierForScore(parsed.Score),
		Memo:   memo,
		TxHash: txHash,
	}
	if err := s.store(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// store は1件の結果をトランザクション内で保存します。
func (s *resultServiceImpl) store(ctx context.Context, entry *models.Result) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.repo.CreateResult(tx, entry); err != nil {
		return fmt.Errorf("ゲーム結果の保存に失敗しました: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

func (s *resultServiceImpl) GetLeaderboard(limit int) ([]models.ResultResponse, error) {
	if s.repo == nil {
		return nil, ErrStorageUnavailable
	}
	return s.repo.GetTopResults(limit)
}

func (s *resultServiceImpl) GetUserRanking(userID string) (*models.ResultResponse, error) {
	if s.repo == nil {
		return nil, ErrStorageUnavailable
	}
	return s.repo.GetUserRanking(userID)
}

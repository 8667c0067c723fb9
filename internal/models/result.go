package models

import (
	"time"
)

// GameResult は1セッション終了時の最終結果です。
// ゲームオーバーのコールバックで一度だけ渡されます。
type GameResult struct {
	Score int `json:"score"`
	Lines int `json:"lines"`
	Level int `json:"level"`
}

// Result はresultsテーブルのレコードに対応する構造体です。
type Result struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Score     int       `json:"score"`
	Lines     int       `json:"lines"`
	Level     int       `json:"level"`
	Tier      string    `json:"tier"`
	Memo      string    `json:"memo"`              // トランザクションに載せるJSONメモ
	TxHash    string    `json:"tx_hash,omitempty"` // 外部で送信済みの場合のみ
	CreatedAt time.Time `json:"created_at"`
}

// ResultResponse はAPI レスポンス用の構造体です。
type ResultResponse struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Score     int       `json:"score"`
	Lines     int       `json:"lines"`
	Level     int       `json:"level"`
	Tier      string    `json:"tier"`
	TxHash    string    `json:"tx_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Rank      int       `json:"rank"` // ランキング順位
}

// ResultRequest は外部で送信済みのスコアメモを記録するリクエストです。
type ResultRequest struct {
	Memo   string `json:"memo"`
	TxHash string `json:"tx_hash"`
}

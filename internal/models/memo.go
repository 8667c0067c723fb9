package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// メモの type フィールドの値
const (
	MemoTypeScore  = "tetris_score"
	MemoTypeReward = "tetris_nft_reward"
)

// 報酬ティア
const (
	TierBronze  = "BRONZE"
	TierSilver  = "SILVER"
	TierGold    = "GOLD"
	TierDiamond = "DIAMOND"
)

// 報酬ティアのしきい値
const (
	SilverThreshold  = 5000
	GoldThreshold    = 10000
	DiamondThreshold = 25000
)

// ErrInvalidMemo はスコアメモとして解釈できない文字列を受け取ったことを表します。
var ErrInvalidMemo = errors.New("invalid score memo")

// ScoreMemo はウォレットクライアントがスコア送信トランザクションに載せるJSONメモです。
type ScoreMemo struct {
	Type      string    `json:"type"`
	Score     int       `json:"score"`
	Lines     int       `json:"lines"`
	Level     int       `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// RewardMemo は報酬トークン発行トランザクションに載せるJSONメモです。
type RewardMemo struct {
	Type      string    `json:"type"`
	Tier      string    `json:"tier"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// NewScoreMemo はゲーム結果からスコアメモを作成します。
func NewScoreMemo(r GameResult, at time.Time) ScoreMemo {
	return ScoreMemo{
		Type:      MemoTypeScore,
		Score:     r.Score,
		Lines:     r.Lines,
		Level:     r.Level,
		Timestamp: at.UTC(),
	}
}

// NewRewardMemo はスコアに応じたティアの報酬メモを作成します。
func NewRewardMemo(score int, at time.Time) RewardMemo {
	return RewardMemo{
		Type:      MemoTypeReward,
		Tier:      RewardTierForScore(score),
		Score:     score,
		Timestamp: at.UTC(),
	}
}

// Encode はメモをJSON文字列にします。
func (m ScoreMemo) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("スコアメモのエンコードに失敗しました: %w", err)
	}
	return string(b), nil
}

// Encode はメモをJSON文字列にします。
func (m RewardMemo) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("報酬メモのエンコードに失敗しました: %w", err)
	}
	return string(b), nil
}

// ParseScoreMemo はトランザクションのメモ文字列をスコアメモとして解釈します。
// JSONでないもの、type が tetris_score でないもの、負の値を含むものは ErrInvalidMemo になります。
func ParseScoreMemo(s string) (ScoreMemo, error) {
	var m ScoreMemo
	if s == "" {
		return m, fmt.Errorf("%w: empty memo", ErrInvalidMemo)
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidMemo, err)
	}
	if m.Type != MemoTypeScore {
		return m, fmt.Errorf("%w: unexpected type %q", ErrInvalidMemo, m.Type)
	}
	if m.Score < 0 || m.Lines < 0 || m.Level < 0 {
		return m, fmt.Errorf("%w: negative value", ErrInvalidMemo)
	}
	return m, nil
}

// RewardTierForScore はスコアから報酬ティアを決定します。
func RewardTierForScore(score int) string {
	switch {
	case score >= DiamondThreshold:
		return TierDiamond
	case score >= GoldThreshold:
		return TierGold
	case score >= SilverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// Result はメモに対応するゲーム結果を返します。
func (m ScoreMemo) Result() GameResult {
	return GameResult{Score: m.Score, Lines: m.Lines, Level: m.Level}
}

package tetris

import (
	"errors"
	"fmt"
	"time"
)

// ゲーム全体に影響する定数
const (
	InitialFallInterval = 1000 * time.Millisecond // レベル0の自動落下間隔
	FallIntervalStep    = 50 * time.Millisecond   // 1レベルごとの短縮幅
	MinFallInterval     = 100 * time.Millisecond  // 自動落下間隔の下限
	LinesPerLevel       = 10                      // レベルアップに必要なライン数
	HardDropLockDelay   = 50 * time.Millisecond   // ハードドロップ後、固定のティックが来るまでの時間
)

// lineClearScores は1回の固定で消したライン数ごとの基本点です。
var lineClearScores = [...]int{0, 40, 100, 300, 1200}

// プレイヤーが送信できるアクション
const (
	ActionMoveLeft    = "move_left"
	ActionMoveRight   = "move_right"
	ActionRotate      = "rotate"
	ActionSoftDrop    = "soft_drop"
	ActionHardDrop    = "hard_drop"
	ActionTogglePause = "toggle_pause"
	ActionRestart     = "restart"
)

// ErrUnknownAction は未知のアクション名を受け取ったことを表します。
var ErrUnknownAction = errors.New("unknown action")

// CalculateScore は1回の固定で消したライン数と、その固定の前のレベルから獲得スコアを計算します。
//
// Parameters:
//   clearedLines : クリアされたライン数 (0-4)
//   level        : ラインを加算する前のレベル
// Returns:
//   int: 獲得スコア（範囲外のライン数は0点）
func CalculateScore(clearedLines int, level int) int {
	if clearedLines < 0 || clearedLines >= len(lineClearScores) {
		return 0
	}
	return lineClearScores[clearedLines] * (level + 1)
}

// LevelForLines は累計ライン数からレベルを求めます。
func LevelForLines(lines int) int {
	return lines / LinesPerLevel
}

// DropSpeed は現在のレベルに基づいた自動落下間隔を返します。
func DropSpeed(level int) time.Duration {
	interval := InitialFallInterval - time.Duration(level)*FallIntervalStep
	if interval < MinFallInterval {
		interval = MinFallInterval
	}
	return interval
}

// ApplyPlayerInput はプレイヤーの入力（アクション）をゲームに適用します。
// restart はセッション側で扱うため、ここでは受け付けません。
//
// Parameters:
//   game   : 操作対象のゲーム
//   action : プレイヤーが実行したアクション（例: "move_left", "rotate"）
// Returns:
//   bool : ゲーム状態が実際に変更された場合はtrue
//   error: 未知のアクションの場合
func ApplyPlayerInput(game *Game, action string) (bool, error) {
	switch action {
	case ActionMoveLeft:
		return game.MoveLeft(), nil
	case ActionMoveRight:
		return game.MoveRight(), nil
	case ActionRotate:
		return game.Rotate(), nil
	case ActionSoftDrop:
		return game.SoftDrop(), nil
	case ActionHardDrop:
		return game.HardDrop(), nil
	case ActionTogglePause:
		return game.TogglePause(), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// IsValidAction はセッションが受け付けるアクションかどうかを返します。
func IsValidAction(action string) bool {
	switch action {
	case ActionMoveLeft, ActionMoveRight, ActionRotate, ActionSoftDrop,
		ActionHardDrop, ActionTogglePause, ActionRestart:
		return true
	}
	return false
}

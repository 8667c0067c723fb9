package tetris

import (
	"errors"
	"testing"
	"time"

	"github.com/kiitris/kiitris-backend/internal/models/tetris"
)

// TestCalculateScore はスコアテーブルとレベル倍率をテストします。
func TestCalculateScore(t *testing.T) {
	tests := []struct {
		lines int
		level int
		want  int
	}{
		{0, 0, 0},
		{0, 7, 0},
		{1, 0, 40},
		{2, 3, 400},
		{3, 1, 600},
		{4, 0, 1200},
		{4, 2, 3600},
		{5, 0, 0},
		{-1, 0, 0},
	}

	for _, tt := range tests {
		if got := CalculateScore(tt.lines, tt.level); got != tt.want {
			t.Errorf("CalculateScore(%d, %d) = %d, want %d", tt.lines, tt.level, got, tt.want)
		}
	}
}

// TestLevelForLines は累計ライン数からのレベル計算をテストします。
func TestLevelForLines(t *testing.T) {
	tests := map[int]int{0: 0, 9: 0, 10: 1, 23: 2, 30: 3, 99: 9}
	for lines, want := range tests {
		if got := LevelForLines(lines); got != want {
			t.Errorf("LevelForLines(%d) = %d, want %d", lines, got, want)
		}
	}
}

// TestDropSpeed は落下間隔が単調減少し、下限で止まることをテストします。
func TestDropSpeed(t *testing.T) {
	if got := DropSpeed(0); got != 1000*time.Millisecond {
		t.Errorf("Expected 1000ms at level 0, but got %v", got)
	}
	if got := DropSpeed(5); got != 750*time.Millisecond {
		t.Errorf("Expected 750ms at level 5, but got %v", got)
	}
	if got := DropSpeed(18); got != 100*time.Millisecond {
		t.Errorf("Expected 100ms at level 18, but got %v", got)
	}
	if got := DropSpeed(50); got != 100*time.Millisecond {
		t.Errorf("Expected drop speed to be clamped to 100ms, but got %v", got)
	}

	prev := DropSpeed(0)
	for level := 1; level < 30; level++ {
		cur := DropSpeed(level)
		if cur > prev {
			t.Errorf("Drop speed increased from %v to %v at level %d", prev, cur, level)
		}
		prev = cur
	}
}

// TestApplyPlayerInput_MoveLeft はピースの左移動をテストします。
func TestApplyPlayerInput_MoveLeft(t *testing.T) {
	game := NewGame(scriptedGenerator(tetris.TypeO, tetris.TypeO), nil)
	game.Spawn()
	initialX := game.State().CurrentPiece.X

	moved, err := ApplyPlayerInput(game, ActionMoveLeft)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !moved {
		t.Error("Expected piece to move left, but it did not.")
	}
	if got := game.State().CurrentPiece.X; got != initialX-1 {
		t.Errorf("Expected X to be %d, but got %d", initialX-1, got)
	}

	// 壁に衝突するまで左に移動
	for i := 0; i < tetris.BoardWidth; i++ {
		ApplyPlayerInput(game, ActionMoveLeft)
	}
	if got := game.State().CurrentPiece.X; got != 0 {
		t.Errorf("Expected X to stop at 0, but got %d", got)
	}
	moved, _ = ApplyPlayerInput(game, ActionMoveLeft)
	if moved {
		t.Error("Expected piece not to move left (collision with wall), but it did.")
	}
}

// TestApplyPlayerInput_MoveRight はピースの右移動をテストします。
func TestApplyPlayerInput_MoveRight(t *testing.T) {
	game := NewGame(scriptedGenerator(tetris.TypeO, tetris.TypeO), nil)
	game.Spawn()

	for i := 0; i < tetris.BoardWidth; i++ {
		ApplyPlayerInput(game, ActionMoveRight)
	}
	if got := game.State().CurrentPiece.X; got != tetris.BoardWidth-2 {
		t.Errorf("Expected X to stop at %d, but got %d", tetris.BoardWidth-2, got)
	}
}

// TestApplyPlayerInput_Rotate はピースの回転をテストします。
func TestApplyPlayerInput_Rotate(t *testing.T) {
	game := NewGame(scriptedGenerator(tetris.TypeT, tetris.TypeT), nil)
	game.Spawn()
	before := game.State().CurrentPiece.Mask

	moved, err := ApplyPlayerInput(game, ActionRotate)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !moved {
		t.Fatal("Expected T piece to rotate at spawn")
	}
	if !game.State().CurrentPiece.Mask.Equal(before.RotateClockwise()) {
		t.Errorf("Expected mask to be rotated clockwise, got %v", game.State().CurrentPiece.Mask)
	}
}

// TestApplyPlayerInput_SoftDrop はソフトドロップをテストします。
func TestApplyPlayerInput_SoftDrop(t *testing.T) {
	game := NewGame(scriptedGenerator(tetris.TypeO, tetris.TypeO), nil)
	game.Spawn()
	initialY := game.State().CurrentPiece.Y

	moved, _ := ApplyPlayerInput(game, ActionSoftDrop)
	if !moved {
		t.Error("Expected piece to soft drop, but it did not.")
	}
	if got := game.State().CurrentPiece.Y; got != initialY+1 {
		t.Errorf("Expected Y to be %d, but got %d", initialY+1, got)
	}
	if game.State().Score != 0 {
		t.Errorf("Soft drop must not award points, got %d", game.State().Score)
	}
}

// TestApplyPlayerInput_TogglePause は一時停止の切り替えをテストします。
func TestApplyPlayerInput_TogglePause(t *testing.T) {
	game := NewGame(scriptedGenerator(tetris.TypeO, tetris.TypeO), nil)
	game.Spawn()

	ApplyPlayerInput(game, ActionTogglePause)
	if !game.State().IsPaused {
		t.Fatal("Expected game to be paused")
	}
	ApplyPlayerInput(game, ActionTogglePause)
	if game.State().IsPaused {
		t.Fatal("Expected game to be resumed")
	}
}

// TestApplyPlayerInput_UnknownAction は未知のアクションがエラーになることをテストします。
func TestApplyPlayerInput_UnknownAction(t *testing.T) {
	game := NewGame(scriptedGenerator(tetris.TypeO), nil)

	moved, err := ApplyPlayerInput(game, "hold")
	if moved {
		t.Error("Unknown action must not change the game")
	}
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Expected ErrUnknownAction, got %v", err)
	}

	// restart はセッションが扱う
	if _, err := ApplyPlayerInput(game, ActionRestart); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Expected restart to be rejected by ApplyPlayerInput, got %v", err)
	}
	if !IsValidAction(ActionRestart) || IsValidAction("hold") {
		t.Error("IsValidAction returned an unexpected result")
	}
}

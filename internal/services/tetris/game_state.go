package tetris

import (
	"time"

	"github.com/kiitris/kiitris-backend/internal/models"
	"github.com/kiitris/kiitris-backend/internal/models/tetris"
)

// GameState は1プレイヤーのゲーム状態です。
//
// 遷移のたびに新しい GameState を作って丸ごと置き換えます。
// CurrentPiece と NextPiece が指す Piece は作成後に変更しません。
type GameState struct {
	Board        tetris.Board  // 現在のゲームボード
	CurrentPiece *tetris.Piece // 現在操作中のテトリミノ（スポーン前はnil）
	NextPiece    *tetris.Piece // 次に出現するテトリミノ
	Score        int           // 累計スコア
	LinesCleared int           // 累計ライン数
	Level        int           // LinesCleared / 10
	IsPaused     bool
	IsGameOver   bool // 一度trueになったら戻らない
}

// NewGameState は空のボードで始まる初期状態を返します。ピースはまだありません。
func NewGameState() GameState {
	return GameState{Board: tetris.NewBoard()}
}

// GameOverFunc はゲームオーバーの遷移時に、最終結果とともに一度だけ呼ばれます。
type GameOverFunc func(result models.GameResult)

// Game はゲーム状態の遷移を管理します。
// Game 自体は並行利用に対応していません。所有するゴルーチン（Session）からのみ操作してください。
type Game struct {
	state      GameState
	generator  *tetris.Generator
	onGameOver GameOverFunc
	notified   bool
}

// NewGame は新しいゲームを作成します。onGameOver はnilでも構いません。
func NewGame(generator *tetris.Generator, onGameOver GameOverFunc) *Game {
	return NewGameWithState(NewGameState(), generator, onGameOver)
}

// NewGameWithState は任意の状態からゲームを再開します。
func NewGameWithState(state GameState, generator *tetris.Generator, onGameOver GameOverFunc) *Game {
	return &Game{
		state:      state,
		generator:  generator,
		onGameOver: onGameOver,
		notified:   state.IsGameOver,
	}
}

// State は現在の状態のコピーを返します。
func (g *Game) State() GameState {
	return g.state
}

// DropSpeed は現在のレベルでの自動落下間隔です。
func (g *Game) DropSpeed() time.Duration {
	return DropSpeed(g.state.Level)
}

// canOperate はピース操作を受け付けられる状態かどうかを返します。
// ピースがなければここでスポーンさせます。
func (g *Game) canOperate() bool {
	if g.state.IsGameOver || g.state.IsPaused {
		return false
	}
	g.Spawn()
	return g.state.CurrentPiece != nil
}

// Spawn は操作中のピースがないときに新しいピースを出現させます。
// 先読みの NextPiece があればそれを使い、なければ新しく生成します。そのあと NextPiece を1つ生成します。
//
// Returns:
//   bool: ピースを出現させた場合はtrue
func (g *Game) Spawn() bool {
	if g.state.IsGameOver || g.state.CurrentPiece != nil {
		return false
	}
	next := g.state

	current := g.state.NextPiece
	if current == nil {
		p := g.generator.Spawn()
		current = &p
	}
	lookahead := g.generator.Spawn()

	next.CurrentPiece = current
	next.NextPiece = &lookahead
	g.state = next
	return true
}

// Shift はピースを横に動かします。
func (g *Game) Shift(dx int) bool {
	if !g.canOperate() {
		return false
	}
	moved, ok := tetris.Shift(&g.state.Board, *g.state.CurrentPiece, dx)
	if !ok {
		return false
	}
	g.replaceCurrent(moved)
	return true
}

// MoveLeft はピースを左に1マス動かします。
func (g *Game) MoveLeft() bool {
	return g.Shift(-1)
}

// MoveRight はピースを右に1マス動かします。
func (g *Game) MoveRight() bool {
	return g.Shift(1)
}

// Rotate はピースを時計回りに回転させます（壁蹴りなし）。
func (g *Game) Rotate() bool {
	if !g.canOperate() {
		return false
	}
	rotated, ok := tetris.Rotate(&g.state.Board, *g.state.CurrentPiece)
	if !ok {
		return false
	}
	g.replaceCurrent(rotated)
	return true
}

// SoftDrop はピースを1マス落とします。自動落下のティックも同じ処理です。
// 落とせない場合はピースを固定し、ラインクリア、スコア加算、次のピースの出現（またはゲームオーバー）を行います。
//
// Returns:
//   bool: 状態が変化した場合はtrue（落下または固定）
func (g *Game) SoftDrop() bool {
	if !g.canOperate() {
		return false
	}
	dropped, ok := tetris.SoftDrop(&g.state.Board, *g.state.CurrentPiece)
	if ok {
		g.replaceCurrent(dropped)
		return true
	}
	g.lock()
	return true
}

// Tick は自動落下の1ティックです。
func (g *Game) Tick() bool {
	return g.SoftDrop()
}

// HardDrop はピースを着地位置まで落とします。固定は次のティックで行われます。
//
// Returns:
//   bool: ピースが1マス以上動いた場合はtrue
func (g *Game) HardDrop() bool {
	if !g.canOperate() {
		return false
	}
	current := *g.state.CurrentPiece
	dropped := tetris.HardDrop(&g.state.Board, current)
	if dropped.Y == current.Y {
		return false
	}
	g.replaceCurrent(dropped)
	return true
}

// TogglePause は一時停止を切り替えます。ゲームオーバー後は何もしません。
func (g *Game) TogglePause() bool {
	if g.state.IsGameOver {
		return false
	}
	next := g.state
	next.IsPaused = !next.IsPaused
	g.state = next
	return true
}

// replaceCurrent は操作中のピースだけを差し替えた新しい状態に置き換えます。
func (g *Game) replaceCurrent(p tetris.Piece) {
	next := g.state
	next.CurrentPiece = &p
	g.state = next
}

// lock はピースをボードに固定した後の処理をすべて行います。
//
// ラインクリア後のボードに先読みの NextPiece を初期位置で置けなければゲームオーバーになります。
// このときボードは固定直後（ラインクリア前）の状態で残り、スコア・ライン・レベルにはこの固定の分が含まれます。
// 置ける場合は NextPiece が操作中のピースになり、新しい NextPiece がちょうど1つ生成されます。
func (g *Game) lock() {
	prev := g.state
	merged := prev.Board.Merge(*prev.CurrentPiece)
	cleared, lines := merged.ClearFullRows()

	next := prev
	next.Score += CalculateScore(lines, prev.Level) // 加算前のレベルで計算
	next.LinesCleared += lines
	next.Level = LevelForLines(next.LinesCleared)

	lookahead := prev.NextPiece
	if lookahead == nil {
		p := g.generator.Spawn()
		lookahead = &p
	}

	if !cleared.CanPlace(lookahead.Mask, lookahead.X, lookahead.Y) {
		next.Board = merged
		next.CurrentPiece = nil
		next.NextPiece = lookahead
		next.IsGameOver = true
		g.state = next
		g.notifyGameOver()
		return
	}

	upcoming := g.generator.Spawn()
	next.Board = cleared
	next.CurrentPiece = lookahead
	next.NextPiece = &upcoming
	g.state = next
}

// notifyGameOver はゲームオーバーのコールバックを一度だけ呼び出します。
func (g *Game) notifyGameOver() {
	if g.notified {
		return
	}
	g.notified = true
	if g.onGameOver != nil {
		g.onGameOver(g.Result())
	}
}

// Result は現在のスコア・ライン・レベルを返します。
func (g *Game) Result() models.GameResult {
	return models.GameResult{
		Score: g.state.Score,
		Lines: g.state.LinesCleared,
		Level: g.state.Level,
	}
}

// Snapshot は描画用の読み取り専用スナップショットです。
type Snapshot struct {
	Board        tetris.Board  `json:"board"`
	CurrentPiece *tetris.Piece `json:"current_piece"`
	NextPiece    *tetris.Piece `json:"next_piece"`
	Score        int           `json:"score"`
	LinesCleared int           `json:"lines_cleared"`
	Level        int           `json:"level"`
	DropSpeedMs  int64         `json:"drop_speed_ms"`
	IsPaused     bool          `json:"is_paused"`
	IsGameOver   bool          `json:"is_game_over"`
}

// Snapshot は現在の状態のスナップショットを返します。
// ピースはディープコピーされるので、受け取った側が変更してもゲームには影響しません。
func (g *Game) Snapshot() Snapshot {
	s := g.state
	return Snapshot{
		Board:        s.Board,
		CurrentPiece: clonePiece(s.CurrentPiece),
		NextPiece:    clonePiece(s.NextPiece),
		Score:        s.Score,
		LinesCleared: s.LinesCleared,
		Level:        s.Level,
		DropSpeedMs:  DropSpeed(s.Level).Milliseconds(),
		IsPaused:     s.IsPaused,
		IsGameOver:   s.IsGameOver,
	}
}

func clonePiece(p *tetris.Piece) *tetris.Piece {
	if p == nil {
		return nil
	}
	c := p.Clone()
	return &c
}

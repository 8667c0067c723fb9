package tetris

const (
	BoardWidth  = 10 // テトリスボードの幅
	BoardHeight = 20 // テトリスボードの高さ
)

// Cell はボード上の1マスの状態です。
// ボードに固定されたブロックは色や種類を保持せず、埋まっているかどうかだけを持ちます。
type Cell uint8

const (
	CellEmpty  Cell = iota // 0: 空のマス
	CellFilled             // 1: 埋まっているマス
)

// Board はテトリスのゲームボードを表す2次元配列です。
// Board[y][x] でアクセスします。yは行（上から0）、xは列です。
//
// 配列型なので代入や値渡しで独立したコピーになります。
// Merge や ClearFullRows はレシーバーを変更せず、新しいボードを返します。
type Board [BoardHeight][BoardWidth]Cell

// NewBoard は新しい空のボードを返します。
// 配列はゼロ値（CellEmpty）で初期化されるため、特別な初期化は不要です。
func NewBoard() Board {
	var board Board
	return board
}

// CanPlace はマスクを (originX, originY) に置けるかどうかを判定します。
//
// マスクの埋まっているマスそれぞれについて、ボード上の座標が
// 0 <= x < BoardWidth かつ y < BoardHeight であり、
// さらに y < 0（ボードより上の見えない領域）か、そのマスが空である必要があります。
//
// Parameters:
//   mask    : ピースの正方形マスク
//   originX : マスク左上のボード上のX座標
//   originY : マスク左上のボード上のY座標
// Returns:
//   bool: 置ける場合はtrue
func (b *Board) CanPlace(mask Mask, originX, originY int) bool {
	for row := range mask {
		for col := range mask[row] {
			if !mask[row][col] {
				continue
			}
			x := originX + col
			y := originY + row

			// 左右の壁、または底との衝突
			if x < 0 || x >= BoardWidth || y >= BoardHeight {
				return false
			}
			// 上部の見えない領域は既存ブロックと衝突しない
			if y >= 0 && b[y][x] != CellEmpty {
				return false
			}
		}
	}
	return true
}

// Merge はピースを固定した新しいボードを返します。
// ボードの範囲外にはみ出したマスは無視されます。レシーバーは変更されません。
func (b Board) Merge(p Piece) Board {
	merged := b // 値コピー
	for row := range p.Mask {
		for col := range p.Mask[row] {
			if !p.Mask[row][col] {
				continue
			}
			x := p.X + col
			y := p.Y + row
			if x >= 0 && x < BoardWidth && y >= 0 && y < BoardHeight {
				merged[y][x] = CellFilled
			}
		}
	}
	return merged
}

// IsRowFull は指定された行がすべて埋まっているかどうかを返します。
func (b *Board) IsRowFull(y int) bool {
	for x := 0; x < BoardWidth; x++ {
		if b[y][x] == CellEmpty {
			return false
		}
	}
	return true
}

// ClearFullRows は揃ったラインをすべて同時に取り除き、上に同じ数の空行を詰めたボードを返します。
// 残った行の相対的な順序は保たれます。
//
// Returns:
//   Board: ラインクリア後の新しいボード
//   int  : クリアされたライン数 (0 から BoardHeight)
func (b Board) ClearFullRows() (Board, int) {
	cleared := 0
	newBoard := NewBoard()

	destY := BoardHeight - 1 // 新しいボードにコピーする際の最も下の行

	// 最下部から上に向かって、揃っていない行だけを詰めてコピー
	for y := BoardHeight - 1; y >= 0; y-- {
		if b.IsRowFull(y) {
			cleared++
			continue
		}
		newBoard[destY] = b[y]
		destY--
	}
	return newBoard, cleared
}

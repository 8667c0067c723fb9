package tetris

// 移動と回転はすべて (Board, Piece) に対する純粋関数です。
// 不正な操作はエラーではなく、元のピースをそのまま返す（何もしない）扱いになります。

// Shift はピースを横に dx マス動かします。
//
// Returns:
//   Piece: 移動後のピース（移動できない場合は元のピース）
//   bool : 移動できた場合はtrue
func Shift(b *Board, p Piece, dx int) (Piece, bool) {
	if !b.CanPlace(p.Mask, p.X+dx, p.Y) {
		return p, false
	}
	p.X += dx
	return p, true
}

// SoftDrop はピースを1マス下に動かします。
// falseが返った場合、ピースはもう落下できないので呼び出し側は固定処理を行う必要があります。
func SoftDrop(b *Board, p Piece) (Piece, bool) {
	if !b.CanPlace(p.Mask, p.X, p.Y+1) {
		return p, false
	}
	p.Y++
	return p, true
}

// HardDrop はピースを置ける最も下の位置まで落とします。
// 固定は行いません。既に着地している場合は元のピースがそのまま返ります。
func HardDrop(b *Board, p Piece) Piece {
	for b.CanPlace(p.Mask, p.X, p.Y+1) {
		p.Y++
	}
	return p
}

// Rotate はピースを時計回りに90度回転させます。
// 回転後のマスクを現在の位置 (X, Y) のまま判定し、壁蹴り（オフセット探索）は行いません。
// 衝突する場合は元のピースがそのまま返ります。
func Rotate(b *Board, p Piece) (Piece, bool) {
	rotated := p.Mask.RotateClockwise()
	if !b.CanPlace(rotated, p.X, p.Y) {
		return p, false
	}
	p.Mask = rotated
	return p, true
}

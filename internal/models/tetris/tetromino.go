package tetris

import "math/rand"

// PieceType はテトリミノの種類を表します。
type PieceType int

const (
	TypeI PieceType = iota // 0: I-ミノ (シアン)
	TypeO                  // 1: O-ミノ (黄色)
	TypeT                  // 2: T-ミノ (紫)
	TypeS                  // 3: S-ミノ (緑)
	TypeZ                  // 4: Z-ミノ (赤)
	TypeJ                  // 5: J-ミノ (青)
	TypeL                  // 6: L-ミノ (オレンジ)
)

// PieceTypeCount はテトリミノの種類数です。
const PieceTypeCount = 7

// Mask はピースのバウンディングボックス内でどのマスが埋まっているかを示す正方形のグリッドです。
// Mask[row][col] でアクセスします。常に N×N なので、回転しても形が崩れません。
//
// 一度作られたマスクは変更しません。回転は新しいマスクを作ります。
type Mask [][]bool

// Size はマスクの一辺の長さ N を返します。
func (m Mask) Size() int {
	return len(m)
}

// Clone はマスクのディープコピーを返します。
func (m Mask) Clone() Mask {
	c := make(Mask, len(m))
	for row := range m {
		c[row] = append([]bool(nil), m[row]...)
	}
	return c
}

// RotateClockwise は時計回りに90度回転した新しいマスクを返します。
// rotated[col][N-1-row] = original[row][col]
func (m Mask) RotateClockwise() Mask {
	n := len(m)
	rotated := make(Mask, n)
	for i := range rotated {
		rotated[i] = make([]bool, n)
	}
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			rotated[col][n-1-row] = m[row][col]
		}
	}
	return rotated
}

// Equal は2つのマスクが同じ形かどうかを返します。
func (m Mask) Equal(other Mask) bool {
	if len(m) != len(other) {
		return false
	}
	for row := range m {
		if len(m[row]) != len(other[row]) {
			return false
		}
		for col := range m[row] {
			if m[row][col] != other[row][col] {
				return false
			}
		}
	}
	return true
}

// Piece は落下中のテトリミノです。
// X, Y はマスク左上のボード上の座標です。
//
// Piece は値として扱い、移動や回転では新しい Piece を返します（コピーオンライト）。
type Piece struct {
	Type  PieceType `json:"type"`
	Mask  Mask      `json:"mask"`
	Color string    `json:"color"`
	X     int       `json:"x"`
	Y     int       `json:"y"`
}

type pieceShape struct {
	mask  Mask
	color string
}

// pieceCatalog は各PieceTypeの初期マスクと表示色を定義します。
var pieceCatalog = [PieceTypeCount]pieceShape{
	TypeI: {
		mask: Mask{
			{false, false, false, false},
			{true, true, true, true},
			{false, false, false, false},
			{false, false, false, false},
		},
		color: "#00f0f0",
	},
	TypeO: {
		mask: Mask{
			{true, true},
			{true, true},
		},
		color: "#f0f000",
	},
	TypeT: {
		mask: Mask{
			{false, true, false},
			{true, true, true},
			{false, false, false},
		},
		color: "#a000f0",
	},
	TypeS: {
		mask: Mask{
			{false, true, true},
			{true, true, false},
			{false, false, false},
		},
		color: "#00f000",
	},
	TypeZ: {
		mask: Mask{
			{true, true, false},
			{false, true, true},
			{false, false, false},
		},
		color: "#f00000",
	},
	TypeJ: {
		mask: Mask{
			{true, false, false},
			{true, true, true},
			{false, false, false},
		},
		color: "#0000f0",
	},
	TypeL: {
		mask: Mask{
			{false, false, true},
			{true, true, true},
			{false, false, false},
		},
		color: "#f0a000",
	},
}

// NewPiece は指定された種類のピースを初期位置（水平中央、y=0）で生成します。
// マスクはカタログからコピーされるので、呼び出し側で自由に扱えます。
func NewPiece(t PieceType) Piece {
	shape := pieceCatalog[t]
	return Piece{
		Type:  t,
		Mask:  shape.mask.Clone(),
		Color: shape.color,
		X:     BoardWidth/2 - shape.mask.Size()/2,
		Y:     0,
	}
}

// Clone はピースのディープコピーを返します。
func (p Piece) Clone() Piece {
	p.Mask = p.Mask.Clone()
	return p
}

// Generator はランダムにピースを生成します。
// 毎回7種類から独立に一様な抽選を行います（7-bagのような履歴は持ちません）。
//
// 乱数源は差し替え可能で、シードを固定すると同じ順番でピースが出現します。
// Generator は並行利用に対応していません。1つのゲームループからのみ使ってください。
type Generator struct {
	rng *rand.Rand
}

// NewGenerator は指定された乱数源を使う Generator を返します。
func NewGenerator(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// NewSeededGenerator はシードから Generator を作成します。
func NewSeededGenerator(seed int64) *Generator {
	return NewGenerator(rand.NewSource(seed))
}

// Spawn は新しいピースをランダムな種類で生成します。
func (g *Generator) Spawn() Piece {
	return NewPiece(PieceType(g.rng.Intn(PieceTypeCount)))
}

// String はPieceTypeを文字列表現に変換します。
func (t PieceType) String() string {
	switch t {
	case TypeI:
		return "I"
	case TypeO:
		return "O"
	case TypeT:
		return "T"
	case TypeS:
		return "S"
	case TypeZ:
		return "Z"
	case TypeJ:
		return "J"
	case TypeL:
		return "L"
	default:
		return "?"
	}
}

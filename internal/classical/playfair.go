package classical

import (
	"math"
	"strings"

	"github.com/RowanDark/cipherlab/internal/alphabet"
)

// PaddingLetter separates doubled letters and completes an odd final digraph.
// It also fills the spare cell of the key square. X is not a Turkish letter,
// so padding never collides with genuine Turkish plaintext.
const PaddingLetter = 'X'

// spareCell fills the extra cell when the alphabet already contains X.
const spareCell = '#'

// Digraph is a pair of letters transformed together.
type Digraph [2]rune

func (d Digraph) String() string {
	return string(d[:])
}

// KeySquare is the rows×cols grid derived from a keyword. It holds every
// alphabet symbol (minus a folded letter, if any) plus one filler cell.
type KeySquare struct {
	Rows   int
	Cols   int
	Cells  []rune
	Filler rune

	fold     letterFold
	position map[rune]int
}

type letterFold struct {
	from, to rune
	active   bool
}

func (f letterFold) apply(r rune) rune {
	if f.active && r == f.from {
		return f.to
	}
	return r
}

// Position returns the grid coordinates of r.
func (k KeySquare) Position(r rune) (row, col int, ok bool) {
	i, ok := k.position[k.fold.apply(alphabet.Upper(r))]
	if !ok {
		return 0, 0, false
	}
	return i / k.Cols, i % k.Cols, true
}

// At returns the symbol at row, col.
func (k KeySquare) At(row, col int) rune {
	return k.Cells[row*k.Cols+col]
}

func (k KeySquare) String() string {
	var sb strings.Builder
	for r := 0; r < k.Rows; r++ {
		if r > 0 {
			sb.WriteByte('\n')
		}
		for c := 0; c < k.Cols; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteRune(k.At(r, c))
		}
	}
	return sb.String()
}

// BuildKeySquare writes the normalized keyword without repeats, then the
// remaining alphabet symbols in order, then the filler cell.
func BuildKeySquare(a *alphabet.Alphabet, keyword string) KeySquare {
	fold := foldFor(a)
	filler := fillerFor(a)

	cells := make([]rune, 0, a.Size()+1)
	seen := make(map[rune]bool, a.Size()+1)
	add := func(r rune) {
		r = fold.apply(r)
		if seen[r] {
			return
		}
		seen[r] = true
		cells = append(cells, r)
	}
	for _, r := range a.Normalize(keyword) {
		add(r)
	}
	for _, r := range a.Symbols() {
		add(r)
	}
	add(filler)

	rows, cols, _ := gridShape(len(cells))
	position := make(map[rune]int, len(cells))
	for i, r := range cells {
		position[r] = i
	}
	return KeySquare{
		Rows:     rows,
		Cols:     cols,
		Cells:    cells,
		Filler:   filler,
		fold:     fold,
		position: position,
	}
}

// gridShape picks the most nearly square rows×cols grid with exactly cells
// cells. ok is false when cells is prime and only a single row fits.
func gridShape(cells int) (rows, cols int, ok bool) {
	for r := int(math.Sqrt(float64(cells))); r > 1; r-- {
		if cells%r == 0 {
			return r, cells / r, true
		}
	}
	return 1, cells, false
}

// foldFor decides whether one low-frequency letter must merge into its
// neighbour so the symbols plus filler form a proper rectangle. The Turkish
// alphabet fills a 5×6 square exactly and never folds.
func foldFor(a *alphabet.Alphabet) letterFold {
	if _, _, ok := gridShape(a.Size() + 1); ok {
		return letterFold{}
	}
	if a.Contains('J') && a.Contains('I') {
		return letterFold{from: 'J', to: 'I', active: true}
	}
	n := a.Size()
	return letterFold{from: a.CharAt(n - 1), to: a.CharAt(n - 2), active: true}
}

func fillerFor(a *alphabet.Alphabet) rune {
	if a.Contains(PaddingLetter) {
		return spareCell
	}
	return PaddingLetter
}

// PrepareDigraphs splits text into digraphs. When encrypting, non-members are
// dropped, doubled letters are split with PaddingLetter and an odd tail is
// padded. A doubled or trailing X is paired with the filler cell. When decrypting, the padding letter is kept as a square member and
// letters are paired as they stand.
func PrepareDigraphs(a *alphabet.Alphabet, text string, mode Mode) []Digraph {
	fold := foldFor(a)
	filler := fillerFor(a)

	letters := make([]rune, 0, len(text))
	for _, r := range alphabet.UpperString(text) {
		switch {
		case a.Contains(r):
			letters = append(letters, fold.apply(r))
		case mode == Decrypt && (r == filler || r == PaddingLetter):
			letters = append(letters, r)
		}
	}

	digraphs := make([]Digraph, 0, len(letters)/2+1)
	for i := 0; i < len(letters); {
		first := letters[i]
		if i+1 == len(letters) {
			digraphs = append(digraphs, Digraph{first, padFor(first, filler)})
			break
		}
		second := letters[i+1]
		if mode == Encrypt && first == second {
			digraphs = append(digraphs, Digraph{first, padFor(first, filler)})
			i++
			continue
		}
		digraphs = append(digraphs, Digraph{first, second})
		i += 2
	}
	return digraphs
}

// padFor picks the letter that pairs with r when r is doubled or left over.
// An X in an alphabet that has one is paired with the filler cell instead.
func padFor(r, filler rune) rune {
	if r == PaddingLetter {
		return filler
	}
	return PaddingLetter
}

// substitute applies the row, column and rectangle rules to one digraph. step
// is +1 to encrypt and -1 to decrypt.
func (k KeySquare) substitute(d Digraph, step int) Digraph {
	r1, c1, ok1 := k.Position(d[0])
	r2, c2, ok2 := k.Position(d[1])
	if !ok1 || !ok2 {
		return d
	}
	switch {
	case r1 == r2:
		return Digraph{k.At(r1, wrap(c1+step, k.Cols)), k.At(r2, wrap(c2+step, k.Cols))}
	case c1 == c2:
		return Digraph{k.At(wrap(r1+step, k.Rows), c1), k.At(wrap(r2+step, k.Rows), c2)}
	default:
		return Digraph{k.At(r1, c2), k.At(r2, c1)}
	}
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}

// Playfair transforms text digraph by digraph through the key square built
// from keyword. Output is uppercase with spacing and punctuation removed.
func Playfair(a *alphabet.Alphabet, text, keyword string, mode Mode) string {
	square := BuildKeySquare(a, keyword)
	step := 1
	if mode == Decrypt {
		step = -1
	}
	var sb strings.Builder
	for _, d := range PrepareDigraphs(a, text, mode) {
		out := square.substitute(d, step)
		sb.WriteRune(out[0])
		sb.WriteRune(out[1])
	}
	return sb.String()
}

// StripPadding removes padding letters from decrypted Playfair output. It is a
// no-op for alphabets that contain the padding letter, where padding cannot be
// told apart from plaintext.
func StripPadding(a *alphabet.Alphabet, s string) string {
	if a.Contains(PaddingLetter) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r == PaddingLetter {
			return -1
		}
		return r
	}, s)
}

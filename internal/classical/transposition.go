package classical

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/RowanDark/cipherlab/internal/alphabet"
	"github.com/RowanDark/cipherlab/internal/cipherr"
)

// ColumnarFiller pads the last row of a columnar grid.
const ColumnarFiller = 'X'

// stripAndUpper removes whitespace and uppercases under Turkish rules.
// Transpositions work on raw characters, so punctuation and digits survive.
func stripAndUpper(text string) []rune {
	upper := alphabet.UpperString(text)
	out := make([]rune, 0, len(upper))
	for _, r := range upper {
		if unicode.IsSpace(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// railPattern returns the rail each position of a length-n text is written to
// when zigzagging across rails.
func railPattern(n, rails int) []int {
	pattern := make([]int, n)
	rail, dir := 0, 1
	for i := range pattern {
		pattern[i] = rail
		switch rail {
		case 0:
			dir = 1
		case rails - 1:
			dir = -1
		}
		rail += dir
	}
	return pattern
}

// RailFence writes text in a zigzag over rails rows and reads the rows top to
// bottom. Whitespace is stripped and letters are uppercased first. rails <= 1
// returns the normalized text unchanged.
func RailFence(text string, rails int, mode Mode) string {
	chars := stripAndUpper(text)
	if rails <= 1 || len(chars) <= 1 {
		return string(chars)
	}
	pattern := railPattern(len(chars), rails)
	if mode == Decrypt {
		return string(railFenceDecrypt(chars, pattern, rails))
	}

	buffers := make([][]rune, rails)
	for i, r := range chars {
		buffers[pattern[i]] = append(buffers[pattern[i]], r)
	}
	var sb strings.Builder
	for _, buf := range buffers {
		sb.WriteString(string(buf))
	}
	return sb.String()
}

func railFenceDecrypt(chars []rune, pattern []int, rails int) []rune {
	// Length pass: how many characters each rail received.
	lengths := make([]int, rails)
	for _, rail := range pattern {
		lengths[rail]++
	}

	segments := make([][]rune, rails)
	offset := 0
	for rail, n := range lengths {
		segments[rail] = chars[offset : offset+n]
		offset += n
	}

	// Re-walk the zigzag, consuming one character from each visited rail.
	cursor := make([]int, rails)
	out := make([]rune, len(chars))
	for i, rail := range pattern {
		out[i] = segments[rail][cursor[rail]]
		cursor[rail]++
	}
	return out
}

// KeyOrder ranks each character of key. Ranks follow Turkish collation order;
// ties keep the order of first occurrence. Only whitespace is dropped: digits
// and punctuation are columns like any letter and sort ahead of letters, so a
// key's length is always its column count.
func KeyOrder(key string) []int {
	chars := stripAndUpper(key)
	col := collate.New(language.Turkish)

	positions := make([]int, len(chars))
	for i := range positions {
		positions[i] = i
	}
	sort.SliceStable(positions, func(x, y int) bool {
		return col.CompareString(string(chars[positions[x]]), string(chars[positions[y]])) < 0
	})

	ranks := make([]int, len(chars))
	for rank, pos := range positions {
		ranks[pos] = rank
	}
	return ranks
}

// readOrder inverts a rank assignment: readOrder[rank] is the column with
// that rank.
func readOrder(ranks []int) []int {
	order := make([]int, len(ranks))
	for col, rank := range ranks {
		order[rank] = col
	}
	return order
}

// Columnar writes text row-major into len(key) columns and reads the columns
// in key-rank order. Encryption pads the final row with ColumnarFiller.
// Decryption accepts padded and unpadded ciphertext; in an unpadded grid the
// rightmost columns are one character short.
func Columnar(text, key string, mode Mode) (string, error) {
	ranks := KeyOrder(key)
	cols := len(ranks)
	if cols == 0 {
		return "", cipherr.Formatf("columnar", "key must contain at least one non-space character")
	}
	chars := stripAndUpper(text)
	if len(chars) == 0 {
		return "", nil
	}
	if mode == Decrypt {
		return columnarDecrypt(chars, ranks)
	}
	return columnarEncrypt(chars, ranks), nil
}

func columnarEncrypt(chars []rune, ranks []int) string {
	cols := len(ranks)
	rows := (len(chars) + cols - 1) / cols
	grid := make([]rune, rows*cols)
	copy(grid, chars)
	for i := len(chars); i < len(grid); i++ {
		grid[i] = ColumnarFiller
	}

	var sb strings.Builder
	sb.Grow(len(grid))
	for _, col := range readOrder(ranks) {
		for row := 0; row < rows; row++ {
			sb.WriteRune(grid[row*cols+col])
		}
	}
	return sb.String()
}

func columnarDecrypt(chars []rune, ranks []int) (string, error) {
	cols := len(ranks)
	if len(chars) < cols {
		return "", cipherr.Formatf("columnar", "ciphertext of %d characters cannot fill one row of a %d-column key", len(chars), cols)
	}
	rows := (len(chars) + cols - 1) / cols
	full := len(chars) % cols
	if full == 0 {
		full = cols
	}

	// Columns at or beyond full are short by one in an unpadded grid.
	lengths := make([]int, cols)
	for col := range lengths {
		lengths[col] = rows
		if col >= full {
			lengths[col] = rows - 1
		}
	}

	columns := make([][]rune, cols)
	offset := 0
	for _, col := range readOrder(ranks) {
		columns[col] = chars[offset : offset+lengths[col]]
		offset += lengths[col]
	}

	out := make([]rune, 0, len(chars))
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if row < len(columns[col]) {
				out = append(out, columns[col][row])
			}
		}
	}
	return string(out), nil
}

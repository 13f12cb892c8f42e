package classical

import (
	"strings"
	"testing"

	"github.com/RowanDark/cipherlab/internal/alphabet"
)

func TestBuildKeySquare(t *testing.T) {
	sq := BuildKeySquare(alphabet.Turkish, "Ankara")
	if sq.Rows != 5 || sq.Cols != 6 {
		t.Fatalf("expected 5x6 square, got %dx%d", sq.Rows, sq.Cols)
	}
	want := strings.Join([]string{
		"A N K R B C",
		"Ç D E F G Ğ",
		"H I İ J L M",
		"O Ö P S Ş T",
		"U Ü V Y Z X",
	}, "\n")
	if sq.String() != want {
		t.Fatalf("unexpected square:\n%s\nwant:\n%s", sq.String(), want)
	}
	if sq.Filler != PaddingLetter {
		t.Fatalf("expected filler %q, got %q", PaddingLetter, sq.Filler)
	}
	row, col, ok := sq.Position('i')
	if !ok || row != 2 || col != 2 {
		t.Fatalf("expected i at (2,2), got (%d,%d) ok=%v", row, col, ok)
	}
}

func TestKeySquareIsRebuiltPerKeyword(t *testing.T) {
	a := BuildKeySquare(alphabet.Turkish, "Ankara")
	b := BuildKeySquare(alphabet.Turkish, "İzmir")
	if a.String() == b.String() {
		t.Fatal("different keywords must yield different squares")
	}
	if again := BuildKeySquare(alphabet.Turkish, "ankara"); again.String() != a.String() {
		t.Fatal("key square must be deterministic and case-insensitive")
	}
}

func TestPrepareDigraphs(t *testing.T) {
	tests := []struct {
		name string
		text string
		mode Mode
		want []string
	}{
		{"even", "Merhaba!", Encrypt, []string{"ME", "RH", "AB", "AX"}},
		{"doubled letters", "balla", Encrypt, []string{"BA", "LX", "LA"}},
		{"strips non-members", "a-b c?", Encrypt, []string{"AB", "CX"}},
		{"decrypt keeps filler", "NKXU", Decrypt, []string{"NK", "XU"}},
		{"decrypt does not split doubles", "AA", Decrypt, []string{"AA"}},
		{"empty", "  ", Encrypt, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PrepareDigraphs(alphabet.Turkish, tt.text, tt.mode)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i].String() != tt.want[i] {
					t.Fatalf("digraph %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestPlayfairRules(t *testing.T) {
	tests := []struct {
		name  string
		plain string
		want  string
	}{
		{"same row", "AN", "NK"},
		{"same row wraps", "ZX", "XU"},
		{"same column", "AÇ", "ÇH"},
		{"same column wraps", "UA", "AÇ"},
		{"rectangle", "AD", "NÇ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Playfair(alphabet.Turkish, tt.plain, "Ankara", Encrypt)
			if got != tt.want {
				t.Fatalf("encrypt %q = %q, want %q", tt.plain, got, tt.want)
			}
			back := Playfair(alphabet.Turkish, got, "Ankara", Decrypt)
			if back != tt.plain {
				t.Fatalf("decrypt %q = %q, want %q", got, back, tt.plain)
			}
		})
	}
}

func TestPlayfairRoundTrip(t *testing.T) {
	texts := []string{"Merhaba Dünya", "Işık ılık süt iç", "balla", "KİTAP", "çğıöşü"}
	for _, keyword := range []string{"Ankara", "gizli anahtar", ""} {
		for _, text := range texts {
			enc := Playfair(alphabet.Turkish, text, keyword, Encrypt)
			dec := StripPadding(alphabet.Turkish, Playfair(alphabet.Turkish, enc, keyword, Decrypt))
			if want := alphabet.Turkish.Normalize(text); dec != want {
				t.Fatalf("keyword %q: round trip of %q gave %q, want %q", keyword, text, dec, want)
			}
		}
	}
}

func TestPlayfairUnknownLetterPassesThrough(t *testing.T) {
	sq := BuildKeySquare(alphabet.Turkish, "Ankara")
	d := Digraph{'A', 'Q'}
	if got := sq.substitute(d, 1); got != d {
		t.Fatalf("expected digraph with unknown letter unchanged, got %s", got)
	}
}

func TestKeySquareFoldsForPrimeSizedAlphabet(t *testing.T) {
	// 22 symbols plus filler is 23 cells, a prime, so J folds into I.
	a := alphabet.MustNew("ABCDEFGHIJKLMNOPRSTUVY")
	sq := BuildKeySquare(a, "")
	if sq.Rows*sq.Cols != len(sq.Cells) || sq.Rows < 2 {
		t.Fatalf("expected a rectangular grid, got %dx%d for %d cells", sq.Rows, sq.Cols, len(sq.Cells))
	}
	ri, ci, _ := sq.Position('I')
	rj, cj, ok := sq.Position('J')
	if !ok || ri != rj || ci != cj {
		t.Fatal("expected J to share I's cell")
	}
	enc := Playfair(a, "JUDO", "", Encrypt)
	if dec := Playfair(a, enc, "", Decrypt); dec != "IUDO" {
		t.Fatalf("expected folded round trip IUDO, got %q", dec)
	}
}

func TestStripPadding(t *testing.T) {
	if got := StripPadding(alphabet.Turkish, "MERHABAX"); got != "MERHABA" {
		t.Fatalf("expected MERHABA, got %q", got)
	}
	latin := alphabet.MustNew("ABCDEFGHIKLMNOPQRSTUVWXYZ")
	if got := StripPadding(latin, "TAXI"); got != "TAXI" {
		t.Fatalf("padding must be kept when X is a letter, got %q", got)
	}
}

func TestPrepareDigraphsNeverPairsPaddingWithItself(t *testing.T) {
	latin := alphabet.MustNew("ABCDEFGHIKLMNOPQRSTUVWXYZ")
	tests := []struct {
		text string
		want []string
	}{
		{"xx", []string{"X#"}},
		{"taxxi", []string{"TA", "X#", "XI"}},
		{"tax", []string{"TA", "X#"}},
		{"box", []string{"BO", "X#"}},
		{"bob", []string{"BO", "BX"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := PrepareDigraphs(latin, tt.text, Encrypt)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i, d := range got {
				if d[0] == d[1] {
					t.Fatalf("digraph %d has identical letters: %s", i, d)
				}
				if d.String() != tt.want[i] {
					t.Fatalf("digraph %d: expected %s, got %s", i, tt.want[i], d)
				}
			}
		})
	}

	enc := Playfair(latin, "TAXXI", "KEYWORD", Encrypt)
	if dec := Playfair(latin, enc, "KEYWORD", Decrypt); dec != "TAX#XI" {
		t.Fatalf("expected TAX#XI after round trip, got %q", dec)
	}
}

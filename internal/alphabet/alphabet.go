// Package alphabet models the fixed, ordered symbol set the letter ciphers
// operate over.
package alphabet

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TurkishSymbols is the 29-letter Turkish alphabet in collation order.
const TurkishSymbols = "ABCÇDEFGĞHIİJKLMNOÖPRSŞTUÜVYZ"

// Turkish is the alphabet every cipher in cipherlab uses by default.
var Turkish = MustNew(TurkishSymbols)

// Alphabet is an immutable ordered list of unique uppercase symbols.
// Lookups are case-insensitive under Turkish casing rules, so both "i" and
// "İ" resolve to İ while "ı" and "I" resolve to I.
type Alphabet struct {
	symbols []rune
	index   map[rune]int
}

// New builds an alphabet from symbols, uppercasing them first.
func New(symbols string) (*Alphabet, error) {
	runes := []rune(symbols)
	if len(runes) == 0 {
		return nil, fmt.Errorf("alphabet must not be empty")
	}
	a := &Alphabet{
		symbols: make([]rune, 0, len(runes)),
		index:   make(map[rune]int, len(runes)),
	}
	for _, r := range runes {
		u := Upper(r)
		if _, dup := a.index[u]; dup {
			return nil, fmt.Errorf("alphabet symbol %q appears more than once", u)
		}
		a.index[u] = len(a.symbols)
		a.symbols = append(a.symbols, u)
	}
	return a, nil
}

// MustNew is New for package-level alphabets known to be valid.
func MustNew(symbols string) *Alphabet {
	a, err := New(symbols)
	if err != nil {
		panic(err)
	}
	return a
}

// Size returns the number of symbols.
func (a *Alphabet) Size() int {
	return len(a.symbols)
}

// IndexOf returns r's position. ok is false for non-members, which callers
// pass through unchanged.
func (a *Alphabet) IndexOf(r rune) (int, bool) {
	i, ok := a.index[Upper(r)]
	return i, ok
}

// CharAt returns the uppercase symbol at position i.
func (a *Alphabet) CharAt(i int) rune {
	return a.symbols[i]
}

func (a *Alphabet) Contains(r rune) bool {
	_, ok := a.IndexOf(r)
	return ok
}

// Symbols returns a copy of the ordered symbols.
func (a *Alphabet) Symbols() []rune {
	out := make([]rune, len(a.symbols))
	copy(out, a.symbols)
	return out
}

func (a *Alphabet) String() string {
	return string(a.symbols)
}

// Reversed returns the symbols in reverse order, the Atbash key.
func (a *Alphabet) Reversed() string {
	out := make([]rune, len(a.symbols))
	for i, r := range a.symbols {
		out[len(out)-1-i] = r
	}
	return string(out)
}

// Normalize uppercases s and drops every character that is not a member.
// Keys are always normalized before use.
func (a *Alphabet) Normalize(s string) string {
	upper := UpperString(s)
	var sb strings.Builder
	sb.Grow(len(upper))
	for _, r := range upper {
		if _, ok := a.index[r]; ok {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Indices returns the positions of the members of s in order, skipping
// non-members.
func (a *Alphabet) Indices(s string) []int {
	out := make([]int, 0, len(s))
	for _, r := range s {
		if i, ok := a.IndexOf(r); ok {
			out = append(out, i)
		}
	}
	return out
}

// Map rewrites every member of text through fn, which receives the member's
// position and returns the position of its replacement. Non-members are
// copied untouched and the original case of each letter is restored.
func (a *Alphabet) Map(text string, fn func(index int) int) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		i, ok := a.IndexOf(r)
		if !ok {
			sb.WriteRune(r)
			continue
		}
		out := a.symbols[fn(i)]
		if unicode.IsLower(r) {
			out = Lower(out)
		}
		sb.WriteRune(out)
	}
	return sb.String()
}

// Upper maps a single rune to upper case under Turkish rules.
func Upper(r rune) rune {
	return unicode.TurkishCase.ToUpper(r)
}

// Lower maps a single rune to lower case under Turkish rules.
func Lower(r rune) rune {
	return unicode.TurkishCase.ToLower(r)
}

// UpperString uppercases s under Turkish rules.
func UpperString(s string) string {
	// A Caser carries state, so one is built per call.
	return cases.Upper(language.Turkish).String(s)
}

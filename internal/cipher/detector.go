package cipher

import (
	"context"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/RowanDark/cipherlab/internal/alphabet"
	"github.com/RowanDark/cipherlab/internal/cipherr"
	"github.com/RowanDark/cipherlab/internal/classical"
)

// turkishFrequencies holds relative letter frequencies (percent) of Turkish
// prose, indexed like alphabet.Turkish.
var turkishFrequencies = [...]float64{
	11.92, // A
	2.84,  // B
	0.96,  // C
	1.15,  // Ç
	4.71,  // D
	8.91,  // E
	0.46,  // F
	1.25,  // G
	1.13,  // Ğ
	1.21,  // H
	5.11,  // I
	8.60,  // İ
	0.03,  // J
	4.68,  // K
	5.92,  // L
	3.75,  // M
	7.23,  // N
	2.48,  // O
	0.78,  // Ö
	0.89,  // P
	6.72,  // R
	3.01,  // S
	1.78,  // Ş
	3.01,  // T
	3.24,  // U
	1.85,  // Ü
	0.96,  // V
	3.37,  // Y
	1.50,  // Z
}

const previewRunes = 60

// FrequencyDetector attacks the keyless ciphers (every Caesar shift and
// Atbash) by scoring each candidate plaintext with a chi-squared test against
// Turkish letter frequencies.
type FrequencyDetector struct {
	// Limit caps the number of results; zero returns every candidate.
	Limit int
}

// NewCaesarDetector returns a detector reporting the five best candidates.
func NewCaesarDetector() *FrequencyDetector {
	return &FrequencyDetector{Limit: 5}
}

// Detect ranks candidate decryptions from most to least plausible.
func (d *FrequencyDetector) Detect(ctx context.Context, input []byte) ([]DetectionResult, error) {
	if !utf8.Valid(input) {
		return nil, cipherr.Validationf("detect", "input is not valid UTF-8")
	}
	text := string(input)
	if len(alphabet.Turkish.Normalize(text)) == 0 {
		return nil, cipherr.Validationf("detect", "input contains no alphabet letters")
	}

	a := alphabet.Turkish
	results := make([]DetectionResult, 0, a.Size()+1)
	for shift := 0; shift < a.Size(); shift++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidate := classical.Caesar(a, text, shift, classical.Decrypt)
		results = append(results, DetectionResult{
			Cipher:     "caesar",
			Operation:  "caesar_decrypt",
			Parameters: map[string]interface{}{"shift": shift},
			Shift:      shift,
			ChiSquared: chiSquared(a, candidate),
			Preview:    preview(candidate),
		})
	}
	mirrored := classical.Atbash(a, text)
	results = append(results, DetectionResult{
		Cipher:     "atbash",
		Operation:  "atbash",
		ChiSquared: chiSquared(a, mirrored),
		Preview:    preview(mirrored),
	})

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ChiSquared < results[j].ChiSquared
	})
	assignConfidence(results)

	if d.Limit > 0 && len(results) > d.Limit {
		results = results[:d.Limit]
	}
	return results, nil
}

// SupportedCiphers returns the ciphers this detector can break.
func (d *FrequencyDetector) SupportedCiphers() []string {
	return []string{"caesar", "atbash"}
}

// chiSquared compares the letter histogram of text with the expected Turkish
// distribution. Lower is a better fit.
func chiSquared(a *alphabet.Alphabet, text string) float64 {
	counts := make([]float64, a.Size())
	total := 0.0
	for _, idx := range a.Indices(text) {
		counts[idx]++
		total++
	}
	if total == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i, observed := range counts {
		expected := total * turkishFrequencies[i] / 100
		diff := observed - expected
		sum += diff * diff / expected
	}
	return sum
}

// assignConfidence converts chi-squared scores into weights that sum to one.
func assignConfidence(results []DetectionResult) {
	if len(results) == 0 {
		return
	}
	best := results[0].ChiSquared
	scale := math.Max(best, 1)
	var total float64
	weights := make([]float64, len(results))
	for i, r := range results {
		weights[i] = math.Exp(-(r.ChiSquared - best) / scale)
		total += weights[i]
	}
	for i := range results {
		results[i].Confidence = weights[i] / total
		results[i].Reasoning = fmt.Sprintf("chi-squared %.1f against Turkish letter frequencies", results[i].ChiSquared)
	}
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes]) + "…"
}

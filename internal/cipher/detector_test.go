package cipher

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/RowanDark/cipherlab/internal/alphabet"
	"github.com/RowanDark/cipherlab/internal/cipherr"
	"github.com/RowanDark/cipherlab/internal/classical"
)

const turkishSample = "Bir varmış bir yokmuş, evvel zaman içinde kalbur saman içinde, " +
	"develer tellal iken pireler berber iken, ben annemin beşiğini tıngır mıngır sallar iken " +
	"uzak bir ülkede akıllı ve çalışkan bir genç kız yaşarmış."

func TestFrequencyTableCoversAlphabet(t *testing.T) {
	if len(turkishFrequencies) != alphabet.Turkish.Size() {
		t.Fatalf("expected %d frequencies, got %d", alphabet.Turkish.Size(), len(turkishFrequencies))
	}
	var sum float64
	for _, f := range turkishFrequencies {
		sum += f
	}
	if math.Abs(sum-100) > 1 {
		t.Fatalf("frequencies should sum to about 100, got %.2f", sum)
	}
}

func TestDetectCaesarShift(t *testing.T) {
	detector := NewCaesarDetector()
	ctx := context.Background()

	for _, shift := range []int{1, 3, 7, 14, 28} {
		ciphertext := classical.Caesar(alphabet.Turkish, turkishSample, shift, classical.Encrypt)
		results, err := detector.Detect(ctx, []byte(ciphertext))
		if err != nil {
			t.Fatalf("shift %d: detect failed: %v", shift, err)
		}
		if len(results) != detector.Limit {
			t.Fatalf("expected %d results, got %d", detector.Limit, len(results))
		}
		best := results[0]
		if best.Cipher != "caesar" || best.Shift != shift {
			t.Fatalf("shift %d: best candidate was %s shift %d", shift, best.Cipher, best.Shift)
		}
		if best.Operation != "caesar_decrypt" || best.Parameters["shift"] != shift {
			t.Fatalf("unexpected suggestion %+v", best)
		}
		if best.Confidence <= results[1].Confidence {
			t.Fatalf("best candidate should have the highest confidence")
		}
	}
}

func TestDetectAtbash(t *testing.T) {
	ciphertext := classical.Atbash(alphabet.Turkish, turkishSample)
	results, err := NewCaesarDetector().Detect(context.Background(), []byte(ciphertext))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if results[0].Cipher != "atbash" {
		t.Fatalf("expected atbash first, got %s shift %d", results[0].Cipher, results[0].Shift)
	}
}

func TestDetectConfidenceSumsToOne(t *testing.T) {
	detector := &FrequencyDetector{}
	results, err := detector.Detect(context.Background(), []byte(turkishSample))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(results) != alphabet.Turkish.Size()+1 {
		t.Fatalf("unlimited detector should return every candidate, got %d", len(results))
	}
	var total float64
	for i, r := range results {
		total += r.Confidence
		if i > 0 && r.ChiSquared < results[i-1].ChiSquared {
			t.Fatal("results must be sorted by chi-squared")
		}
	}
	if math.Abs(total-1) > 1e-9 {
		t.Fatalf("confidence should sum to 1, got %f", total)
	}
}

func TestDetectRejectsInputWithoutLetters(t *testing.T) {
	detector := NewCaesarDetector()
	for _, input := range []string{"", "1234 !?", "\xff"} {
		if _, err := detector.Detect(context.Background(), []byte(input)); !errors.Is(err, cipherr.ErrValidation) {
			t.Errorf("input %q: expected validation error, got %v", input, err)
		}
	}
}

func TestPreviewTruncates(t *testing.T) {
	long := classical.Caesar(alphabet.Turkish, turkishSample, 0, classical.Encrypt)
	if got := []rune(preview(long)); len(got) != previewRunes+1 {
		t.Fatalf("expected %d runes including ellipsis, got %d", previewRunes+1, len(got))
	}
	if preview("kısa") != "kısa" {
		t.Fatal("short text should be returned as is")
	}
}

func TestSupportedCiphers(t *testing.T) {
	var d Detector = NewCaesarDetector()
	if got := d.SupportedCiphers(); len(got) != 2 {
		t.Fatalf("unexpected supported ciphers %v", got)
	}
}

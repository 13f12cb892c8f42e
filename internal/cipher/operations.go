package cipher

import (
	"context"
	"unicode/utf8"

	"github.com/RowanDark/cipherlab/internal/alphabet"
	"github.com/RowanDark/cipherlab/internal/cipherr"
	"github.com/RowanDark/cipherlab/internal/classical"
)

// transformFunc turns validated UTF-8 text into output text.
type transformFunc func(text string, params map[string]interface{}) (string, error)

// TextOp adapts a text transform to the Operation interface.
type TextOp struct {
	BaseOperation
	run transformFunc
}

func (op *TextOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(input) {
		return nil, cipherr.Validationf(op.NameValue, "input is not valid UTF-8")
	}
	out, err := op.run(string(input), params)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func newTextOp(name string, typ OperationType, desc string, params []ParamSpec, run transformFunc) *TextOp {
	return &TextOp{
		BaseOperation: BaseOperation{
			NameValue:        name,
			TypeValue:        typ,
			DescriptionValue: desc,
			ParamsValue:      params,
		},
		run: run,
	}
}

// pair links an encrypt/decrypt couple as each other's reverse.
func pair(enc, dec *TextOp) {
	enc.ReverseOp = dec
	dec.ReverseOp = enc
}

var (
	shiftParam   = ParamSpec{Name: "shift", Kind: ParamInteger, Required: true, Description: "Alphabet positions to shift by; negative and large values wrap"}
	keyParam     = ParamSpec{Name: "key", Kind: ParamString, Required: true, Description: "Key text; non-alphabet characters are ignored"}
	permParam    = ParamSpec{Name: "key", Kind: ParamString, Required: true, Description: "Permutation of the 29-letter alphabet"}
	keywordParam = ParamSpec{Name: "keyword", Kind: ParamString, Required: true, Description: "Keyword seeding the key square"}
	railsParam   = ParamSpec{Name: "rails", Kind: ParamInteger, Required: true, Description: "Number of rails; 1 or fewer leaves the text unchanged"}
	colKeyParam  = ParamSpec{Name: "key", Kind: ParamString, Required: true, Description: "Column key; letters are ranked in Turkish alphabetical order"}
)

func caesar(mode classical.Mode) transformFunc {
	return func(text string, params map[string]interface{}) (string, error) {
		shift, err := intParam("caesar", params, "shift")
		if err != nil {
			return "", err
		}
		return classical.Caesar(alphabet.Turkish, text, int(shift%int64(alphabet.Turkish.Size())), mode), nil
	}
}

func vigenere(mode classical.Mode) transformFunc {
	return func(text string, params map[string]interface{}) (string, error) {
		key, err := stringParam("vigenere", params, "key")
		if err != nil {
			return "", err
		}
		return classical.Vigenere(alphabet.Turkish, text, key, mode), nil
	}
}

func beaufort(text string, params map[string]interface{}) (string, error) {
	key, err := stringParam("beaufort", params, "key")
	if err != nil {
		return "", err
	}
	return classical.Beaufort(alphabet.Turkish, text, key), nil
}

func substitution(mode classical.Mode) transformFunc {
	return func(text string, params map[string]interface{}) (string, error) {
		key, err := stringParam("substitution", params, "key")
		if err != nil {
			return "", err
		}
		return classical.Substitution(alphabet.Turkish, text, key, mode)
	}
}

func atbash(text string, _ map[string]interface{}) (string, error) {
	return classical.Atbash(alphabet.Turkish, text), nil
}

func playfair(mode classical.Mode) transformFunc {
	return func(text string, params map[string]interface{}) (string, error) {
		keyword, err := stringParam("playfair", params, "keyword")
		if err != nil {
			return "", err
		}
		out := classical.Playfair(alphabet.Turkish, text, keyword, mode)
		if mode == classical.Decrypt {
			keep, err := boolParam("playfair", params, "keep_padding", false)
			if err != nil {
				return "", err
			}
			if !keep {
				out = classical.StripPadding(alphabet.Turkish, out)
			}
		}
		return out, nil
	}
}

func railFence(mode classical.Mode) transformFunc {
	return func(text string, params map[string]interface{}) (string, error) {
		rails, err := intParam("railfence", params, "rails")
		if err != nil {
			return "", err
		}
		// Rails beyond the text length change nothing; cap before allocating.
		if rails > int64(utf8.RuneCountInString(text))+1 {
			rails = int64(utf8.RuneCountInString(text)) + 1
		}
		return classical.RailFence(text, int(rails), mode), nil
	}
}

func columnar(mode classical.Mode) transformFunc {
	return func(text string, params map[string]interface{}) (string, error) {
		key, err := stringParam("columnar", params, "key")
		if err != nil {
			return "", err
		}
		return classical.Columnar(text, key, mode)
	}
}

func init() {
	caesarEnc := newTextOp("caesar_encrypt", OperationTypeEncrypt,
		"Shift every letter forward through the Turkish alphabet",
		[]ParamSpec{shiftParam}, caesar(classical.Encrypt))
	caesarDec := newTextOp("caesar_decrypt", OperationTypeDecrypt,
		"Undo a Caesar shift",
		[]ParamSpec{shiftParam}, caesar(classical.Decrypt))
	pair(caesarEnc, caesarDec)

	vigenereEnc := newTextOp("vigenere_encrypt", OperationTypeEncrypt,
		"Shift each letter by the next key letter",
		[]ParamSpec{keyParam}, vigenere(classical.Encrypt))
	vigenereDec := newTextOp("vigenere_decrypt", OperationTypeDecrypt,
		"Undo a Vigenère encryption",
		[]ParamSpec{keyParam}, vigenere(classical.Decrypt))
	pair(vigenereEnc, vigenereDec)

	beaufortOp := newTextOp("beaufort", OperationTypeInvolution,
		"Beaufort cipher (key minus letter); applying it twice restores the text",
		[]ParamSpec{keyParam}, beaufort)
	beaufortOp.ReverseOp = beaufortOp

	substitutionEnc := newTextOp("substitution_encrypt", OperationTypeEncrypt,
		"Replace each letter using a full alphabet permutation",
		[]ParamSpec{permParam}, substitution(classical.Encrypt))
	substitutionDec := newTextOp("substitution_decrypt", OperationTypeDecrypt,
		"Invert a substitution permutation",
		[]ParamSpec{permParam}, substitution(classical.Decrypt))
	pair(substitutionEnc, substitutionDec)

	atbashOp := newTextOp("atbash", OperationTypeInvolution,
		"Mirror the alphabet (A<->Z); applying it twice restores the text",
		nil, atbash)
	atbashOp.ReverseOp = atbashOp

	keepPadding := ParamSpec{Name: "keep_padding", Kind: ParamBool, Description: "Keep the X filler letters in decrypted output"}
	playfairEnc := newTextOp("playfair_encrypt", OperationTypeEncrypt,
		"Digraph cipher over a 5x6 key square; output is uppercase letters only",
		[]ParamSpec{keywordParam}, playfair(classical.Encrypt))
	playfairDec := newTextOp("playfair_decrypt", OperationTypeDecrypt,
		"Undo a Playfair encryption and remove filler letters",
		[]ParamSpec{keywordParam, keepPadding}, playfair(classical.Decrypt))
	pair(playfairEnc, playfairDec)

	railEnc := newTextOp("railfence_encrypt", OperationTypeEncrypt,
		"Write the text in a zigzag over rails and read row by row",
		[]ParamSpec{railsParam}, railFence(classical.Encrypt))
	railDec := newTextOp("railfence_decrypt", OperationTypeDecrypt,
		"Rebuild the zigzag and read it back in order",
		[]ParamSpec{railsParam}, railFence(classical.Decrypt))
	pair(railEnc, railDec)

	columnarEnc := newTextOp("columnar_encrypt", OperationTypeEncrypt,
		"Write the text row by row under the key and read columns in key order",
		[]ParamSpec{colKeyParam}, columnar(classical.Encrypt))
	columnarDec := newTextOp("columnar_decrypt", OperationTypeDecrypt,
		"Refill key-ordered columns and read rows back",
		[]ParamSpec{colKeyParam}, columnar(classical.Decrypt))
	pair(columnarEnc, columnarDec)

	mustRegister(
		caesarEnc, caesarDec,
		vigenereEnc, vigenereDec,
		beaufortOp,
		substitutionEnc, substitutionDec,
		atbashOp,
		playfairEnc, playfairDec,
		railEnc, railDec,
		columnarEnc, columnarDec,
	)
}

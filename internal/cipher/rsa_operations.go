package cipher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RowanDark/cipherlab/internal/alphabet"
	"github.com/RowanDark/cipherlab/internal/cipherr"
	"github.com/RowanDark/cipherlab/internal/numtheory"
)

var (
	nParam = ParamSpec{Name: "n", Kind: ParamInteger, Required: true, Description: "RSA modulus p*q"}
	eParam = ParamSpec{Name: "e", Kind: ParamInteger, Required: true, Description: "Public exponent"}
	dParam = ParamSpec{Name: "d", Kind: ParamInteger, Required: true, Description: "Private exponent"}
)

func publicKey(op string, params map[string]interface{}) (numtheory.PublicKey, error) {
	n, err := intParam(op, params, "n")
	if err != nil {
		return numtheory.PublicKey{}, err
	}
	e, err := intParam(op, params, "e")
	if err != nil {
		return numtheory.PublicKey{}, err
	}
	return numtheory.PublicKey{N: n, E: e}, nil
}

func privateKey(op string, params map[string]interface{}) (numtheory.PrivateKey, error) {
	n, err := intParam(op, params, "n")
	if err != nil {
		return numtheory.PrivateKey{}, err
	}
	d, err := intParam(op, params, "d")
	if err != nil {
		return numtheory.PrivateKey{}, err
	}
	return numtheory.PrivateKey{N: n, D: d}, nil
}

// rsaIntegers applies fn to every integer in a whitespace or comma
// separated list.
func rsaIntegers(op string, text string, fn func(int64) (int64, error)) (string, error) {
	values, err := numtheory.ParseIntegers(op, text)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", cipherr.Formatf(op, "input holds no integers")
	}
	out := make([]int64, len(values))
	for i, v := range values {
		if out[i], err = fn(v); err != nil {
			return "", err
		}
	}
	return numtheory.FormatIntegers(out), nil
}

func rsaEncrypt(text string, params map[string]interface{}) (string, error) {
	key, err := publicKey("rsa_encrypt", params)
	if err != nil {
		return "", err
	}
	return rsaIntegers("rsa_encrypt", text, key.Encrypt)
}

func rsaDecrypt(text string, params map[string]interface{}) (string, error) {
	key, err := privateKey("rsa_decrypt", params)
	if err != nil {
		return "", err
	}
	return rsaIntegers("rsa_decrypt", text, key.Decrypt)
}

func rsaTextEncrypt(text string, params map[string]interface{}) (string, error) {
	key, err := publicKey("rsa_text_encrypt", params)
	if err != nil {
		return "", err
	}
	return numtheory.EncryptText(alphabet.Turkish, key, text)
}

func rsaTextDecrypt(text string, params map[string]interface{}) (string, error) {
	key, err := privateKey("rsa_text_decrypt", params)
	if err != nil {
		return "", err
	}
	return numtheory.DecryptText(alphabet.Turkish, key, text)
}

// KeygenOp derives an RSA key pair from its parameters. The input is ignored
// and the output is the key pair as JSON.
type KeygenOp struct {
	BaseOperation
}

func (op *KeygenOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kp, err := GenerateKeyPair(params)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(kp)
	if err != nil {
		return nil, fmt.Errorf("encode key pair: %w", err)
	}
	return out, nil
}

// GenerateKeyPair reads p, q and e from params and derives the key pair.
func GenerateKeyPair(params map[string]interface{}) (numtheory.KeyPair, error) {
	const op = "rsa_keygen"
	p, err := intParam(op, params, "p")
	if err != nil {
		return numtheory.KeyPair{}, err
	}
	q, err := intParam(op, params, "q")
	if err != nil {
		return numtheory.KeyPair{}, err
	}
	e, err := intParam(op, params, "e")
	if err != nil {
		return numtheory.KeyPair{}, err
	}
	return numtheory.GenerateKeyPair(p, q, e)
}

func init() {
	rsaEnc := newTextOp("rsa_encrypt", OperationTypeEncrypt,
		"Encrypt whitespace separated integers m with c = m^e mod n",
		[]ParamSpec{nParam, eParam}, rsaEncrypt)
	rsaDec := newTextOp("rsa_decrypt", OperationTypeDecrypt,
		"Decrypt whitespace separated integers c with m = c^d mod n",
		[]ParamSpec{nParam, dParam}, rsaDecrypt)
	pair(rsaEnc, rsaDec)

	rsaTextEnc := newTextOp("rsa_text_encrypt", OperationTypeEncrypt,
		"Encrypt the alphabet index of each letter; n must exceed 29",
		[]ParamSpec{nParam, eParam}, rsaTextEncrypt)
	rsaTextDec := newTextOp("rsa_text_decrypt", OperationTypeDecrypt,
		"Decrypt integers back to letters",
		[]ParamSpec{nParam, dParam}, rsaTextDecrypt)
	pair(rsaTextEnc, rsaTextDec)

	keygen := &KeygenOp{
		BaseOperation: BaseOperation{
			NameValue:        "rsa_keygen",
			TypeValue:        OperationTypeKeygen,
			DescriptionValue: "Derive n, phi and d from primes p, q and exponent e",
			ParamsValue: []ParamSpec{
				{Name: "p", Kind: ParamInteger, Required: true, Description: "First prime"},
				{Name: "q", Kind: ParamInteger, Required: true, Description: "Second prime, distinct from p"},
				{Name: "e", Kind: ParamInteger, Required: true, Description: "Public exponent coprime with phi"},
			},
		},
	}

	mustRegister(rsaEnc, rsaDec, rsaTextEnc, rsaTextDec, keygen)
}

// Package cipher exposes the classical cipher engine as named operations.
//
// # Overview
//
// Every cipher is registered under an operation name such as caesar_encrypt
// or playfair_decrypt. Operations take text in, return text out, and read
// their keys from a parameter map, so the HTTP API, the gRPC service and the
// CLI all drive the engine the same way.
//
// # Quick Start
//
//	op, _ := cipher.GetOperation("caesar_encrypt")
//	out, _ := op.Execute(ctx, []byte("MERHABA"), map[string]interface{}{"shift": 3})
//	// out: []byte("ÖĞTJÇDÇ")
//
// # Pipelines
//
// Chain operations and undo the chain with Reverse:
//
//	pipeline := &cipher.Pipeline{
//	    Operations: []cipher.OperationConfig{
//	        {Name: "atbash"},
//	        {Name: "vigenere_encrypt", Parameters: map[string]interface{}{"key": "LİMON"}},
//	    },
//	    Reversible: true,
//	}
//	encrypted, _ := pipeline.Execute(ctx, []byte("Gizli mesaj"))
//	reversed, _ := pipeline.Reverse()
//	plain, _ := reversed.Execute(ctx, encrypted)
//
// Reverse keeps each step's parameters. rsa_encrypt reads n and e while
// rsa_decrypt reads n and d, so a reversible RSA step must carry all three.
//
// # Recipes
//
// A RecipeManager saves named pipelines as JSON files, one per recipe.
//
// # Breaking keyless ciphers
//
// FrequencyDetector tries every Caesar shift and Atbash and ranks the
// candidates by a chi-squared fit against Turkish letter frequencies.
//
// # Available Operations
//
// Shift: caesar_encrypt/decrypt (shift), vigenere_encrypt/decrypt (key),
// beaufort (key, self-inverse).
//
// Substitution: substitution_encrypt/decrypt (key), atbash (self-inverse).
//
// Digraph: playfair_encrypt/decrypt (keyword, keep_padding).
//
// Transposition: railfence_encrypt/decrypt (rails), columnar_encrypt/decrypt (key).
//
// RSA: rsa_encrypt (n, e), rsa_decrypt (n, d), rsa_text_encrypt/decrypt,
// rsa_keygen (p, q, e).
//
// # Errors
//
// Key and parameter problems are cipherr validation errors, mismatched
// ciphertext shapes are format errors, and out-of-range RSA integers are
// range errors. Operations never return partial output alongside an error.
//
// # Thread Safety
//
// The registry is safe for concurrent use. Operations keep no state between
// calls.
package cipher

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CIPHERLAB_LOG_LEVEL", "error")
	return home
}

func TestRunAndShorthands(t *testing.T) {
	isolate(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"run", "", []string{"run", "caesar_encrypt", "--text", "MERHABA", "--param", "shift=3"}, "ÖĞTJÇDÇ"},
		{"stdin", "ÖĞTJÇDÇ\n", []string{"run", "caesar_decrypt", "-p", "shift=3"}, "MERHABA"},
		{"encrypt shorthand", "", []string{"encrypt", "sezar", "-t", "MERHABA", "-p", "shift=3"}, "ÖĞTJÇDÇ"},
		{"involution shorthand", "", []string{"decrypt", "atbash", "-t", "ABC"}, ""},
		{"rsa encrypt", "", []string{"rsa", "encrypt", "--n", "77", "--e", "13", "--text", "2"}, "30"},
		{"rsa decrypt", "", []string{"rsa", "decrypt", "--n", "77", "--d", "37", "--text", "30"}, "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.stdin, tt.args...)
			if err != nil {
				t.Fatalf("run %v: %v (%s)", tt.args, err, out)
			}
			if tt.want != "" && out != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, out)
			}
			if out == "" {
				t.Fatal("expected output")
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	isolate(t)

	if _, err := runCLI(t, "", "run", "enigma", "--text", "x"); err == nil {
		t.Fatal("expected unknown operation error")
	}
	if _, err := runCLI(t, "", "run", "caesar_encrypt", "--text", "x", "--param", "shift"); err == nil {
		t.Fatal("expected malformed param error")
	}
	if _, err := runCLI(t, "", "encrypt", "enigma", "--text", "x"); err == nil || !strings.Contains(err.Error(), "known ciphers") {
		t.Fatalf("expected unknown cipher error, got %v", err)
	}
	if _, err := runCLI(t, "", "rsa", "keygen", "--p", "7", "--q", "7", "--e", "13"); err == nil {
		t.Fatal("expected keygen validation error")
	}
}

func TestKeygenOutput(t *testing.T) {
	isolate(t)

	out, err := runCLI(t, "", "rsa", "keygen", "--p", "7", "--q", "11", "--e", "13")
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	for _, want := range []string{"n   = 77", "phi = 60", "private (n, d) = (77, 37)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRecipeLifecycle(t *testing.T) {
	home := isolate(t)

	path := filepath.Join(t.TempDir(), "double.yml")
	body := `name: double
description: shift then mirror
pipeline:
  reversible: true
  operations:
    - name: caesar_encrypt
      parameters:
        shift: 3
    - name: atbash
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}
	if out, err := runCLI(t, "", "recipe", "save", path); err != nil {
		t.Fatalf("save: %v (%s)", err, out)
	}
	if _, err := os.Stat(filepath.Join(home, ".cipherlab", "recipes", "double.json")); err != nil {
		t.Fatalf("expected recipe persisted: %v", err)
	}

	list, err := runCLI(t, "", "recipe", "list")
	if err != nil || !strings.Contains(list, "double") || !strings.Contains(list, "sezar-3") {
		t.Fatalf("unexpected recipe list %q (%v)", list, err)
	}

	enc, err := runCLI(t, "", "recipe", "run", "double", "--text", "KRİPTOGRAFİ")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	dec, err := runCLI(t, "", "recipe", "run", "double", "--reverse", "--text", enc)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if dec != "KRİPTOGRAFİ" {
		t.Fatalf("expected round trip, got %q", dec)
	}

	if _, err := runCLI(t, "", "recipe", "delete", "double"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := runCLI(t, "", "recipe", "run", "double", "--text", "x"); err == nil {
		t.Fatal("expected deleted recipe to be gone")
	}
}

func TestHistoryRecordsLocalRuns(t *testing.T) {
	isolate(t)

	if _, err := runCLI(t, "", "run", "vigenere_encrypt", "--text", "MERHABA", "--param", "key=LİMON"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := runCLI(t, "", "run", "substitution_encrypt", "--text", "MERHABA", "--param", "key=ABC"); err == nil {
		t.Fatal("expected substitution failure")
	}
	if _, err := runCLI(t, "", "--no-history", "run", "atbash", "--text", "ABC"); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, err := runCLI(t, "", "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	if !strings.Contains(out, "vigenere_encrypt") || !strings.Contains(out, "validation") {
		t.Fatalf("unexpected history:\n%s", out)
	}
	if strings.Contains(out, "atbash") {
		t.Fatalf("--no-history run was recorded:\n%s", out)
	}

	out, err = runCLI(t, "", "history", "list", "--errors")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	if strings.Contains(out, "vigenere_encrypt") {
		t.Fatalf("--errors should hide successful runs:\n%s", out)
	}

	if _, err := runCLI(t, "", "--no-history", "history", "list"); err == nil {
		t.Fatal("expected error when history is disabled")
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	isolate(t)
	t.Setenv("CIPHERLAB_JWT_SECRET", "hunter2")

	out, err := runCLI(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "hunter2") || !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("secret not masked:\n%s", out)
	}
	if !strings.Contains(out, "http_addr: 127.0.0.1:8729") {
		t.Fatalf("expected defaults in output:\n%s", out)
	}
}

func TestCrackRanksTrueShift(t *testing.T) {
	isolate(t)

	plain := "BUGÜN HAVA ÇOK GÜZEL VE BİZ PARKTA YÜRÜYÜŞ YAPIYORUZ"
	cipherText, err := runCLI(t, "", "run", "caesar_encrypt", "--text", plain, "--param", "shift=7")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	out, err := runCLI(t, "", "crack", "--text", cipherText, "--limit", "1")
	if err != nil {
		t.Fatalf("crack: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "caesar") || !strings.Contains(lines[1], " 7 ") {
		t.Fatalf("expected shift 7 first:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "cipherlab dev" {
		t.Fatalf("unexpected version %q", out)
	}
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"key=a=b", "shift=3"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if params["key"] != "a=b" || params["shift"] != "3" {
		t.Fatalf("unexpected params %v", params)
	}
	if _, err := parseParams([]string{"=x"}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestTokenHash(t *testing.T) {
	isolate(t)

	for name, args := range map[string][]string{
		"argument": {"token", "hash", "bootstrap"},
		"stdin":    {"token", "hash"},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := runCLI(t, "bootstrap\n", args...)
			if err != nil {
				t.Fatalf("token hash: %v", err)
			}
			if err := bcrypt.CompareHashAndPassword([]byte(out), []byte("bootstrap")); err != nil {
				t.Fatalf("output %q is not a bcrypt hash of the token: %v", out, err)
			}
		})
	}

	if _, err := runCLI(t, "", "token", "hash"); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestHistoryShowField(t *testing.T) {
	isolate(t)

	if _, err := runCLI(t, "", "run", "caesar_encrypt", "--text", "MERHABA", "--param", "shift=3"); err != nil {
		t.Fatalf("run: %v", err)
	}
	list, err := runCLI(t, "", "history", "list", "-n", "1")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	lines := strings.Split(list, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one entry:\n%s", list)
	}
	id := strings.Fields(lines[1])[0]

	tests := []struct {
		field string
		want  string
	}{
		{"output", "ÖĞTJÇDÇ"},
		{"operation", "caesar_encrypt"},
		{"params.shift", "3"},
	}
	for _, tt := range tests {
		out, err := runCLI(t, "", "history", "show", id, "--field", tt.field)
		if err != nil {
			t.Fatalf("show --field %s: %v", tt.field, err)
		}
		if out != tt.want {
			t.Fatalf("field %s: expected %q, got %q", tt.field, tt.want, out)
		}
	}
	if _, err := runCLI(t, "", "history", "show", id, "--field", "no.such.field"); err == nil {
		t.Fatal("expected error for missing field")
	}
}

func TestRecipeSet(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "shift.json")
	body := `{"name":"shift","pipeline":{"reversible":true,"operations":[{"name":"caesar_encrypt","parameters":{"shift":3}},{"name":"atbash"}]}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}
	if out, err := runCLI(t, "", "recipe", "save", path); err != nil {
		t.Fatalf("save: %v (%s)", err, out)
	}

	out, err := runCLI(t, "", "recipe", "set", "shift", "pipeline.operations.0.parameters.shift=5", "description=five", "--unset", "pipeline.operations.1")
	if err != nil {
		t.Fatalf("set: %v (%s)", err, out)
	}
	if !strings.Contains(out, "(1 steps)") {
		t.Fatalf("unexpected set output %q", out)
	}

	got, err := runCLI(t, "", "recipe", "run", "shift", "--text", "MERHABA")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want, err := runCLI(t, "", "run", "caesar_encrypt", "--text", "MERHABA", "--param", "shift=5")
	if err != nil {
		t.Fatalf("reference run: %v", err)
	}
	if got != want {
		t.Fatalf("expected edited recipe to shift by 5: got %q, want %q", got, want)
	}

	failures := [][]string{
		{"recipe", "set", "shift"},
		{"recipe", "set", "shift", "name=other"},
		{"recipe", "set", "shift", "pipeline.operations.0.name=enigma"},
		{"recipe", "set", "shift", "--unset", "pipeline.operations.7"},
		{"recipe", "set", "missing", "description=x"},
		{"recipe", "set", "shift", "=x"},
	}
	for _, args := range failures {
		if _, err := runCLI(t, "", args...); err == nil {
			t.Fatalf("expected %v to fail", args)
		}
	}
}

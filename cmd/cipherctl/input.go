package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("text", "t", "", "input text")
	cmd.Flags().StringP("file", "f", "", "read input from a file")
	cmd.Flags().StringP("output", "o", "", "write output to a file (default: stdout)")
}

// inputText reads --text, then --file, then piped stdin.
func inputText(cmd *cobra.Command) (string, error) {
	if text, _ := cmd.Flags().GetString("text"); text != "" {
		return text, nil
	}
	if filename, _ := cmd.Flags().GetString("file"); filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", filename, err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func requireInput(cmd *cobra.Command) (string, error) {
	text, err := inputText(cmd)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("no input text provided; use --text, --file, or pipe to stdin")
	}
	return text, nil
}

func writeOutput(cmd *cobra.Command, text string) error {
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		return os.WriteFile(path, []byte(text+"\n"), 0o600)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

// parseParams turns repeated k=v flags into an operation parameter map.
// Values stay strings; operations convert them to the kind they declare.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q; expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}

package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RowanDark/cipherlab/internal/cipher"
)

func newListCmd(a *app) *cobra.Command {
	var opType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.isRemote() {
				client, err := a.client()
				if err != nil {
					return err
				}
				ctx, cancel := callContext(cmd)
				defer cancel()
				names, err := client.ListOperations(ctx, opType)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE\tPARAMS\tDESCRIPTION")
			for _, op := range svc.Operations() {
				if opType != "" && string(op.Type()) != opType {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", op.Name(), op.Type(), paramNames(op.Params()), op.Description())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&opType, "type", "", "only list operations of this type (encrypt, decrypt, involution, keygen)")
	return cmd
}

func paramNames(specs []cipher.ParamSpec) string {
	if len(specs) == 0 {
		return "-"
	}
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		name := spec.Name
		if !spec.Required {
			name += "?"
		}
		names = append(names, name)
	}
	return strings.Join(names, ",")
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <operation>",
		Short: "Run one operation by name",
		Example: `  cipherctl run caesar_encrypt --text MERHABA --param shift=3
  echo "ÖĞTJÇDÇ" | cipherctl run caesar_decrypt --param shift=3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOperation(cmd, args[0])
		},
	}
	addInputFlags(cmd)
	cmd.Flags().StringArrayP("param", "p", nil, "operation parameter as key=value (repeatable)")
	return cmd
}

// newShorthandCmd builds "encrypt <cipher>" and "decrypt <cipher>", which
// resolve to <cipher>_<direction> or to the cipher itself for involutions.
func newShorthandCmd(a *app, direction string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   direction + " <cipher>",
		Short: strings.ToUpper(direction[:1]) + direction[1:] + " with a named cipher",
		Example: fmt.Sprintf(`  cipherctl %s vigenere --text "KRİPTOGRAFİ" --param key=LİMON
  cipherctl %s atbash --text MERHABA`, direction, direction),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := resolveShorthand(args[0], direction)
			if err != nil {
				return err
			}
			return a.runOperation(cmd, name)
		},
	}
	addInputFlags(cmd)
	cmd.Flags().StringArrayP("param", "p", nil, "operation parameter as key=value (repeatable)")
	return cmd
}

func resolveShorthand(cipherName, direction string) (string, error) {
	base := strings.ToLower(strings.TrimSpace(cipherName))
	base = strings.NewReplacer("-", "_", " ", "_").Replace(base)
	switch base {
	case "rail_fence", "rail":
		base = "railfence"
	case "sezar":
		base = "caesar"
	}
	if _, ok := cipher.GetOperation(base + "_" + direction); ok {
		return base + "_" + direction, nil
	}
	if op, ok := cipher.GetOperation(base); ok && op.Type() == cipher.OperationTypeInvolution {
		return base, nil
	}
	return "", fmt.Errorf("unknown cipher %q; known ciphers: %s", cipherName, strings.Join(knownCiphers(), ", "))
}

func knownCiphers() []string {
	seen := map[string]struct{}{}
	for _, op := range cipher.ListOperations() {
		name := op.Name()
		switch op.Type() {
		case cipher.OperationTypeEncrypt:
			name = strings.TrimSuffix(name, "_encrypt")
		case cipher.OperationTypeInvolution:
		default:
			continue
		}
		seen[name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (a *app) runOperation(cmd *cobra.Command, name string) error {
	text, err := inputText(cmd)
	if err != nil {
		return err
	}
	pairs, _ := cmd.Flags().GetStringArray("param")
	params, err := parseParams(pairs)
	if err != nil {
		return err
	}
	ctx, cancel := callContext(cmd)
	defer cancel()

	if a.isRemote() {
		client, err := a.client()
		if err != nil {
			return err
		}
		out, err := client.Execute(ctx, name, text, params)
		if err != nil {
			return err
		}
		return writeOutput(cmd, out)
	}
	svc, err := a.service()
	if err != nil {
		return err
	}
	out, err := svc.Execute(ctx, name, []byte(text), params)
	if err != nil {
		return err
	}
	return writeOutput(cmd, string(out))
}

func newCrackCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "crack",
		Short: "Rank likely Caesar shifts and Atbash by letter frequency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := requireInput(cmd)
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			ctx, cancel := callContext(cmd)
			defer cancel()
			results, err := svc.Detect(ctx, []byte(text))
			if err != nil {
				return err
			}
			if limit > 0 && limit < len(results) {
				results = results[:limit]
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "CIPHER\tSHIFT\tCHI2\tCONFIDENCE\tPREVIEW")
			for _, r := range results {
				shift := "-"
				if r.Cipher == "caesar" {
					shift = fmt.Sprint(r.Shift)
				}
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%s\n", r.Cipher, shift, r.ChiSquared, r.Confidence, r.Preview)
			}
			return tw.Flush()
		},
	}
	addInputFlags(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of candidates to show")
	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/RowanDark/cipherlab/internal/cipher"
)

func newRecipeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Manage saved pipelines",
	}
	cmd.AddCommand(newRecipeSaveCmd(a), newRecipeListCmd(a), newRecipeRunCmd(a), newRecipeSetCmd(a), newRecipeDeleteCmd(a))
	return cmd
}

func newRecipeSaveCmd(a *app) *cobra.Command {
	var (
		name, description string
		tags              []string
	)
	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Save a recipe from a YAML or JSON file",
		Long: `Save a recipe. The file holds either a full recipe or just a pipeline:

  name: double-shift
  pipeline:
    reversible: true
    operations:
      - name: caesar_encrypt
        parameters: {shift: 3}
      - name: atbash`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipe, err := readRecipe(args[0])
			if err != nil {
				return err
			}
			if name != "" {
				recipe.Name = name
			}
			if description != "" {
				recipe.Description = description
			}
			if len(tags) > 0 {
				recipe.Tags = tags
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			ctx, cancel := callContext(cmd)
			defer cancel()
			if err := svc.SaveRecipe(ctx, recipe); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved recipe %s (%d steps)\n", recipe.Name, len(recipe.Pipeline.Operations))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "recipe name (overrides the file)")
	cmd.Flags().StringVar(&description, "description", "", "recipe description")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "recipe tags")
	return cmd
}

// readRecipe accepts a full recipe document or a bare pipeline.
func readRecipe(path string) (*cipher.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var recipe cipher.Recipe
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &recipe)
	default:
		err = yaml.Unmarshal(data, &recipe)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(recipe.Pipeline.Operations) == 0 {
		var pipeline cipher.Pipeline
		if strings.EqualFold(filepath.Ext(path), ".json") {
			err = json.Unmarshal(data, &pipeline)
		} else {
			err = yaml.Unmarshal(data, &pipeline)
		}
		if err == nil {
			recipe.Pipeline = pipeline
		}
	}
	if recipe.Name == "" {
		recipe.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &recipe, nil
}

func newRecipeListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and saved recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTEPS\tREVERSIBLE\tDESCRIPTION")
			for _, r := range svc.Recipes() {
				fmt.Fprintf(tw, "%s\t%d\t%t\t%s\n", r.Name, len(r.Pipeline.Operations), r.Pipeline.Reversible, r.Description)
			}
			return tw.Flush()
		},
	}
}

func newRecipeRunCmd(a *app) *cobra.Command {
	var reverse bool
	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a recipe, or undo it with --reverse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd)
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
				out, err := client.RunRecipe(ctx, args[0], text, reverse)
				if err != nil {
					return err
				}
				return writeOutput(cmd, out)
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			out, err := svc.RunRecipe(ctx, args[0], []byte(text), reverse)
			if err != nil {
				return err
			}
			return writeOutput(cmd, string(out))
		},
	}
	addInputFlags(cmd)
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "run the inverse pipeline")
	return cmd
}

func newRecipeSetCmd(a *app) *cobra.Command {
	var unset []string
	cmd := &cobra.Command{
		Use:   "set <name> [path=value...]",
		Short: "Edit fields of a saved recipe in place",
		Long: `Edit a recipe by JSON path. Values that parse as JSON (numbers, booleans,
arrays, objects, quoted strings) are stored as such; anything else is a string.

  cipherctl recipe set double pipeline.operations.0.parameters.shift=5
  cipherctl recipe set double description="shift by five, then mirror"
  cipherctl recipe set double --unset pipeline.operations.1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && len(unset) == 0 {
				return fmt.Errorf("nothing to change; pass path=value or --unset")
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			current, err := svc.Recipe(args[0])
			if err != nil {
				return err
			}
			data, err := json.Marshal(current)
			if err != nil {
				return err
			}
			if data, err = editRecipeJSON(data, args[1:], unset); err != nil {
				return err
			}
			var updated cipher.Recipe
			if err := json.Unmarshal(data, &updated); err != nil {
				return fmt.Errorf("edited recipe is invalid: %w", err)
			}
			if updated.Name != current.Name {
				return fmt.Errorf("recipe set cannot rename %s; save a copy instead", current.Name)
			}
			ctx, cancel := callContext(cmd)
			defer cancel()
			if err := svc.SaveRecipe(ctx, &updated); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated recipe %s (%d steps)\n", updated.Name, len(updated.Pipeline.Operations))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&unset, "unset", nil, "JSON path to remove (repeatable)")
	return cmd
}

// editRecipeJSON applies path=value assignments, then removals, to a recipe
// document.
func editRecipeJSON(data []byte, assignments, unset []string) ([]byte, error) {
	var err error
	for _, assignment := range assignments {
		path, value, ok := strings.Cut(assignment, "=")
		path = strings.TrimSpace(path)
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected path=value", assignment)
		}
		if gjson.Valid(value) {
			data, err = sjson.SetRawBytes(data, path, []byte(value))
		} else {
			data, err = sjson.SetBytes(data, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", path, err)
		}
	}
	for _, path := range unset {
		if !gjson.GetBytes(data, path).Exists() {
			return nil, fmt.Errorf("no field at %s", path)
		}
		if data, err = sjson.DeleteBytes(data, path); err != nil {
			return nil, fmt.Errorf("unset %s: %w", path, err)
		}
	}
	return data, nil
}

func newRecipeDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			ctx, cancel := callContext(cmd)
			defer cancel()
			if err := svc.DeleteRecipe(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted recipe %s\n", args[0])
			return nil
		},
	}
}

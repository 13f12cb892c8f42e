package cipher

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/RowanDark/cipherlab/internal/cipherr"
)

// ErrRecipeNotFound is returned when a recipe name is unknown.
var ErrRecipeNotFound = errors.New("recipe not found")

// RecipeManager handles storage and retrieval of recipes
type RecipeManager struct {
	recipes   map[string]*Recipe
	files     map[string]string // recipe name -> file under storePath
	storePath string
	registry  *Registry
	mu        sync.RWMutex
}

// NewRecipeManager creates a recipe manager backed by storePath. An empty
// path keeps recipes in memory only.
func NewRecipeManager(storePath string) *RecipeManager {
	return &RecipeManager{
		recipes:   make(map[string]*Recipe),
		files:     make(map[string]string),
		storePath: storePath,
		registry:  Default(),
	}
}

// BuiltinRecipes returns the recipes shipped with the toolkit.
func BuiltinRecipes() []*Recipe {
	return []*Recipe{
		{
			Name:        "sezar-3",
			Description: "Classic Caesar shift by three",
			Tags:        []string{"shift", "builtin"},
			Pipeline: Pipeline{
				Operations: []OperationConfig{{Name: "caesar_encrypt", Parameters: map[string]interface{}{"shift": 3}}},
				Reversible: true,
			},
		},
		{
			Name:        "atbash-vigenere",
			Description: "Mirror the alphabet, then apply a Vigenère key",
			Tags:        []string{"substitution", "shift", "builtin"},
			Pipeline: Pipeline{
				Operations: []OperationConfig{
					{Name: "atbash"},
					{Name: "vigenere_encrypt", Parameters: map[string]interface{}{"key": "LİMON"}},
				},
				Reversible: true,
			},
		},
		{
			Name:        "double-transposition",
			Description: "Columnar transposition followed by a rail fence over three rails",
			Tags:        []string{"transposition", "builtin"},
			Pipeline: Pipeline{
				Operations: []OperationConfig{
					{Name: "columnar_encrypt", Parameters: map[string]interface{}{"key": "ANKARA"}},
					{Name: "railfence_encrypt", Parameters: map[string]interface{}{"rails": 3}},
				},
				Reversible: true,
			},
		},
	}
}

// LoadBuiltins adds the built-in recipes without overwriting saved ones.
func (rm *RecipeManager) LoadBuiltins() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, recipe := range BuiltinRecipes() {
		if _, exists := rm.recipes[recipe.Name]; exists {
			continue
		}
		recipe.CreatedAt = now
		recipe.UpdatedAt = now
		rm.recipes[recipe.Name] = recipe
	}
}

// Validate checks that every step names a registered operation and, for a
// reversible recipe, that every step can be reversed.
func (rm *RecipeManager) Validate(recipe *Recipe) error {
	if strings.TrimSpace(recipe.Name) == "" {
		return cipherr.Validationf("recipe", "name cannot be empty")
	}
	if len(recipe.Pipeline.Operations) == 0 {
		return cipherr.Validationf("recipe", "%s has no operations", recipe.Name)
	}
	for i, step := range recipe.Pipeline.Operations {
		op, ok := rm.registry.Get(step.Name)
		if !ok {
			return fmt.Errorf("recipe %s step %d: %w: %s", recipe.Name, i, ErrUnknownOperation, step.Name)
		}
		if recipe.Pipeline.Reversible {
			if _, ok := op.Reverse(); !ok {
				return cipherr.Validationf("recipe", "%s is marked reversible but %s has no inverse", recipe.Name, step.Name)
			}
		}
	}
	return nil
}

// SaveRecipe stores a recipe
func (rm *RecipeManager) SaveRecipe(recipe *Recipe) error {
	if err := rm.Validate(recipe); err != nil {
		return err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	var file string
	if rm.storePath != "" {
		var err error
		if file, err = rm.fileFor(recipe.Name); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if existing, ok := rm.recipes[recipe.Name]; ok && recipe.CreatedAt == "" {
		recipe.CreatedAt = existing.CreatedAt
	}
	if recipe.CreatedAt == "" {
		recipe.CreatedAt = now
	}
	recipe.UpdatedAt = now

	rm.recipes[recipe.Name] = recipe

	if rm.storePath != "" {
		if err := rm.persistRecipe(file, recipe); err != nil {
			return err
		}
		rm.files[recipe.Name] = file
	}

	return nil
}

// GetRecipe retrieves a recipe by name
func (rm *RecipeManager) GetRecipe(name string) (*Recipe, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	recipe, exists := rm.recipes[name]
	return recipe, exists
}

// ListRecipes returns all recipes sorted by name.
func (rm *RecipeManager) ListRecipes() []*Recipe {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	recipes := make([]*Recipe, 0, len(rm.recipes))
	for _, recipe := range rm.recipes {
		recipes = append(recipes, recipe)
	}
	sortRecipes(recipes)

	return recipes
}

// DeleteRecipe removes a recipe
func (rm *RecipeManager) DeleteRecipe(name string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.recipes[name]; !ok {
		return fmt.Errorf("%w: %s", ErrRecipeNotFound, name)
	}
	delete(rm.recipes, name)
	file, ok := rm.files[name]
	if !ok {
		file = recipeFilename(name)
	}
	delete(rm.files, name)

	if rm.storePath != "" {
		recipePath := filepath.Join(rm.storePath, file)
		if err := os.Remove(recipePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete recipe file: %w", err)
		}
	}

	return nil
}

// Run executes the named recipe. With reverse set the recipe's pipeline is
// reversed first.
func (rm *RecipeManager) Run(ctx context.Context, name string, input []byte, reverse bool) ([]byte, error) {
	recipe, ok := rm.GetRecipe(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, name)
	}
	pipeline := &recipe.Pipeline
	if reverse {
		reversed, err := pipeline.ReverseWith(rm.registry)
		if err != nil {
			return nil, err
		}
		pipeline = reversed
	}
	return pipeline.ExecuteWith(ctx, rm.registry, input)
}

// LoadRecipes loads all recipes from the store path
func (rm *RecipeManager) LoadRecipes() error {
	if rm.storePath == "" {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if err := os.MkdirAll(rm.storePath, 0o755); err != nil {
		return fmt.Errorf("failed to create recipes directory: %w", err)
	}

	entries, err := os.ReadDir(rm.storePath)
	if err != nil {
		return fmt.Errorf("failed to read recipes directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		recipePath := filepath.Join(rm.storePath, entry.Name())
		data, err := os.ReadFile(recipePath)
		if err != nil {
			return fmt.Errorf("failed to read recipe %s: %w", entry.Name(), err)
		}

		var recipe Recipe
		if err := json.Unmarshal(data, &recipe); err != nil {
			return fmt.Errorf("failed to parse recipe %s: %w", entry.Name(), err)
		}

		rm.recipes[recipe.Name] = &recipe
		rm.files[recipe.Name] = entry.Name()
	}

	return nil
}

// persistRecipe writes a single recipe to file under the store path.
func (rm *RecipeManager) persistRecipe(file string, recipe *Recipe) error {
	if err := os.MkdirAll(rm.storePath, 0o755); err != nil {
		return fmt.Errorf("failed to create recipes directory: %w", err)
	}

	data, err := json.MarshalIndent(recipe, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize recipe: %w", err)
	}

	recipePath := filepath.Join(rm.storePath, file)
	if err := os.WriteFile(recipePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write recipe file: %w", err)
	}

	return nil
}

// recipeFilenameSpace seeds the name hash used by recipeFilename.
var recipeFilenameSpace = uuid.MustParse("6f1c7c52-52a4-4b0e-9a53-3c2b0e5d8f11")

// recipeFilename maps a recipe name to its file. A name that is already a
// safe filename is used as is; any other name gets a suffix derived from the
// raw name, so "rot 3" and "rot_3" land in different files.
func recipeFilename(name string) string {
	safe := sanitizeFilename(name)
	if safe == name {
		return safe + ".json"
	}
	sum := uuid.NewSHA1(recipeFilenameSpace, []byte(name))
	return safe + "-" + hex.EncodeToString(sum[:4]) + ".json"
}

// fileFor picks the file that stores name and refuses one already holding a
// different recipe. File names are compared case-insensitively so the same
// rule holds on case-insensitive filesystems. Callers hold rm.mu.
func (rm *RecipeManager) fileFor(name string) (string, error) {
	if file, ok := rm.files[name]; ok {
		return file, nil
	}
	file := recipeFilename(name)
	for other, taken := range rm.files {
		if other != name && strings.EqualFold(taken, file) {
			return "", cipherr.Validationf("recipe", "%q would overwrite recipe %q stored in %s", name, other, file)
		}
	}
	data, err := os.ReadFile(filepath.Join(rm.storePath, file))
	if err == nil {
		var onDisk Recipe
		if json.Unmarshal(data, &onDisk) == nil && onDisk.Name != name {
			return "", cipherr.Validationf("recipe", "%q would overwrite recipe %q stored in %s", name, onDisk.Name, file)
		}
	}
	return file, nil
}

// sanitizeFilename converts a recipe name to a safe filename. Letters of any
// script are kept so Turkish names stay readable.
func sanitizeFilename(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			sb.WriteRune(r)
		case r == ' ':
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "recipe"
	}
	return sb.String()
}

// SearchRecipes finds recipes whose name, description or tags contain query,
// ignoring case.
func (rm *RecipeManager) SearchRecipes(query string) []*Recipe {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	q := strings.ToLower(query)
	results := make([]*Recipe, 0)
	for _, recipe := range rm.recipes {
		if strings.Contains(strings.ToLower(recipe.Name), q) || strings.Contains(strings.ToLower(recipe.Description), q) {
			results = append(results, recipe)
			continue
		}

		for _, tag := range recipe.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				results = append(results, recipe)
				break
			}
		}
	}
	sortRecipes(results)

	return results
}

func sortRecipes(recipes []*Recipe) {
	sort.Slice(recipes, func(i, j int) bool {
		return recipes[i].Name < recipes[j].Name
	})
}

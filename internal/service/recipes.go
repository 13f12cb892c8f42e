package service

import (
	"context"
	"fmt"

	"github.com/RowanDark/cipherlab/internal/cipher"
	"github.com/RowanDark/cipherlab/internal/history"
	"github.com/RowanDark/cipherlab/internal/logging"
)

// Recipes lists saved and built-in recipes.
func (s *Service) Recipes() []*cipher.Recipe {
	return s.recipes.ListRecipes()
}

// Recipe returns one recipe by name.
func (s *Service) Recipe(name string) (*cipher.Recipe, error) {
	recipe, ok := s.recipes.GetRecipe(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", cipher.ErrRecipeNotFound, name)
	}
	return recipe, nil
}

// SaveRecipe validates and stores recipe.
func (s *Service) SaveRecipe(ctx context.Context, recipe *cipher.Recipe) error {
	if err := s.recipes.SaveRecipe(recipe); err != nil {
		return err
	}
	s.emitRecipe(ctx, logging.EventRecipeSaved, recipe.Name, len(recipe.Pipeline.Operations))
	return nil
}

// DeleteRecipe removes a saved recipe.
func (s *Service) DeleteRecipe(ctx context.Context, name string) error {
	if err := s.recipes.DeleteRecipe(name); err != nil {
		return err
	}
	s.emitRecipe(ctx, logging.EventRecipeDeleted, name, 0)
	return nil
}

// RunRecipe executes a recipe's pipeline, optionally reversed.
func (s *Service) RunRecipe(ctx context.Context, name string, input []byte, reverse bool) ([]byte, error) {
	recipe, err := s.Recipe(name)
	if err != nil {
		return nil, err
	}
	return s.RunPipeline(ctx, recipe.Pipeline, input, reverse)
}

func (s *Service) emitRecipe(ctx context.Context, eventType logging.EventType, name string, steps int) {
	caller := CallerFrom(ctx)
	meta := map[string]any{"recipe": name}
	if steps > 0 {
		meta["steps"] = steps
	}
	err := s.audit.Emit(logging.AuditEvent{
		RequestID: caller.RequestID,
		Subject:   caller.Subject,
		EventType: eventType,
		Decision:  logging.DecisionInfo,
		Metadata:  meta,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("recipe", name).Msg("audit emit failed")
	}
}

// History lists recorded executions.
func (s *Service) History(ctx context.Context, filter history.Filter) ([]history.Entry, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.List(ctx, filter)
}

// HistoryEntry returns one recorded execution.
func (s *Service) HistoryEntry(ctx context.Context, id string) (history.Entry, error) {
	if s.history == nil {
		return history.Entry{}, ErrHistoryDisabled
	}
	return s.history.Get(ctx, id)
}

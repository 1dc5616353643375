package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/abhisek/chemgen/internal/llm"
	"github.com/abhisek/chemgen/internal/questiongen"
	"github.com/abhisek/chemgen/internal/store"
)

// deps are the long-lived objects shared by the commands that call the model.
type deps struct {
	store   *store.Store
	service *questiongen.Service
}

func (d *deps) Close() error {
	return d.store.Close()
}

// buildDeps opens the store and builds the question service. A missing API
// key is not fatal: the provider reports it on the first AI call.
func buildDeps(cmd *cobra.Command) (*deps, error) {
	st, err := openStore(cmd)
	if err != nil {
		return nil, err
	}

	cfg := llm.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		slog.Warn("LLM provider not configured; AI actions will fail until it is", "provider", cfg.Provider, "error", err)
	}

	provider, err := llm.NewProvider(cmd.Context(), cfg, st.EventRepo())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build LLM provider: %w", err)
	}

	return &deps{
		store:   st,
		service: questiongen.New(provider, questiongen.DefaultConfig()),
	}, nil
}

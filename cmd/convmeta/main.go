package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/simplechat/convmeta/internal/profile"
	"github.com/simplechat/convmeta/internal/version"
	"github.com/simplechat/convmeta/plugin/keywords"
	"github.com/simplechat/convmeta/server/service/conversation"
	"github.com/simplechat/convmeta/store"
	"github.com/simplechat/convmeta/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "convmeta",
	Short: "Conversation metadata engine for multi-tenant RAG chat",
	Long: `convmeta maintains per-conversation metadata documents: the scopes a
conversation has touched, deduplicated tags for cited documents, models,
agents, participants and keywords, and the strict-mode confirmation gate.

Configuration comes from CONVMETA_* environment variables or flags.`,
	Version: version.GetCurrentVersion(viper.GetString("mode")),
}

func init() {
	rootCmd.PersistentFlags().String("mode", "demo", `mode of the server: "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver: "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name")

	for _, name := range []string{"mode", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("convmeta")
	viper.AutomaticEnv()

	rootCmd.AddCommand(createCmd, showCmd, listCmd, mergeCmd, strictCmd, approveCmd, checkCmd, verifyCmd, vacuumCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadProfile builds the runtime profile from viper-bound flags plus the
// CONVMETA_* environment.
func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:   viper.GetString("mode"),
		Data:   viper.GetString("data"),
		Driver: viper.GetString("driver"),
		DSN:    viper.GetString("dsn"),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

// openService wires profile, driver, store and service together. The
// returned cleanup closes the store.
func openService(ctx context.Context) (conversation.Service, *store.Store, func(), error) {
	p, err := loadProfile()
	if err != nil {
		return nil, nil, nil, err
	}

	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create db driver: %w", err)
	}
	st := store.New(driver, p)
	if err := driver.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	svc := conversation.New(st, p, newExtractor(p), logger)
	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}
	return svc, st, cleanup, nil
}

func newExtractor(p *profile.Profile) keywords.Extractor {
	if !p.KeywordsEnabled {
		return nil
	}
	layers := []keywords.Layer{keywords.NewRulesLayer()}
	if p.IsKeywordLLMEnabled() {
		layers = append(layers, keywords.NewLLMLayer(keywords.LLMConfig{
			APIKey:  p.OpenAIAPIKey,
			BaseURL: p.OpenAIBaseURL,
			Model:   p.OpenAIModel,
			Timeout: 5 * time.Second,
		}))
	}
	return keywords.NewExtractor(layers...)
}

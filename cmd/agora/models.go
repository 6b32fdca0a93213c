package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agoradev/agora/internal/config"
	"github.com/agoradev/agora/internal/models"
	"github.com/agoradev/agora/internal/openrouter"
)

func newModelsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the free models eligible for agent assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			client := openrouter.NewClient(cfg.APIKey)
			available, err := client.ListModels(ctx)
			if err != nil {
				return fmt.Errorf("listing models: %w", err)
			}

			registry := models.NewRegistry(available)
			for _, m := range registry.FreeModels() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.ID, m.Name)
			}
			return nil
		},
	}
}

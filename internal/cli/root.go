package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"genderage/config"
	"genderage/internal/container"
)

// Version версия приложения
const Version = "0.1.0"

// cfg загружается перед любой подкомандой
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "genderage",
	Short:         "Face detection with gender and age estimation",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute запускает CLI; Ctrl+C отменяет контекст команды.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildContainer(withStorage bool) (*container.Container, error) {
	c, err := container.Build(cfg, withStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise: %w", err)
	}
	return c, nil
}

package cli

import (
	"context"
	"errors"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"genderage/internal/api/rest"
	"genderage/internal/api/telegram"
)

var serveWithBot bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API, dashboard endpoints and websocket stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContainer(true)
		if err != nil {
			return err
		}
		defer c.Close()

		server := rest.NewServer(c.DetectionService, c.AccountService, c.HistoryService, c.DB, rest.Options{
			BindAddress:   cfg.BindAddress,
			TLSDomains:    cfg.TLSDomains,
			SessionSecret: cfg.SessionSecret,
			Debug:         cfg.DebugMode,
		})

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error { return server.Run(ctx) })

		if serveWithBot && cfg.TelegramToken != "" {
			bot, err := telegram.NewBot(cfg.TelegramToken, c.UserService, c.DetectionService)
			if err != nil {
				return err
			}
			g.Go(func() error {
				log.Println("Bot is running...")
				if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithBot, "with-bot", false, "Also run the Telegram bot when TELEGRAM_TOKEN is set")
	rootCmd.AddCommand(serveCmd)
}

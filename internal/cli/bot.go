package cli

import (
	"context"
	"errors"
	"log"

	"github.com/spf13/cobra"

	"genderage/internal/api/telegram"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.TelegramToken == "" {
			return errors.New("TELEGRAM_TOKEN is not set")
		}

		c, err := buildContainer(true)
		if err != nil {
			return err
		}
		defer c.Close()

		bot, err := telegram.NewBot(cfg.TelegramToken, c.UserService, c.DetectionService)
		if err != nil {
			return err
		}

		log.Println("Bot is running...")
		if err := bot.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}

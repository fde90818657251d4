package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"backtestplot/internal/finance"
	"backtestplot/internal/telegram"
)

func init() {
	rootCmd.AddCommand(newPublishCmd())
}

func newPublishCmd() *cobra.Command {
	var (
		sf      sizeFlags
		runID   string
		chatID  int64
		caption string
	)
	cmd := &cobra.Command{
		Use:   "publish [batch.json]",
		Short: "Send the figure of a batch or stored run to a Telegram chat",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if (len(args) == 1) == (runID != "") {
				return fmt.Errorf("give either a batch file or --run")
			}
			if cfg.TelegramToken == "" {
				return fmt.Errorf("publish needs TELEGRAM_BOT_TOKEN")
			}
			if chatID == 0 {
				chatID = cfg.TelegramChatID
			}
			if chatID == 0 {
				return fmt.Errorf("no chat: set --chat or TELEGRAM_CHAT_ID")
			}
			size, err := sf.size()
			if err != nil {
				return err
			}

			var b *finance.Batch
			if runID != "" {
				store, closeDB, err := openStore(ctx)
				if err != nil {
					return err
				}
				defer closeDB()
				run, err := store.GetRun(ctx, runID)
				if err != nil {
					return err
				}
				if b, err = run.Batch(); err != nil {
					return err
				}
				if caption == "" {
					caption = run.Name + " • " + finance.PreviewCaption(b)
				}
			} else if b, err = readBatchFile(args[0]); err != nil {
				return err
			}

			// Publishing only sends, so the webhook is left untouched.
			api, err := telegram.NewAPI(cfg.TelegramToken, "")
			if err != nil {
				return fmt.Errorf("telegram: %w", err)
			}
			return telegram.NewPublisher(api, size).Publish(ctx, chatID, b, caption)
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&runID, "run", "", "Publish a stored run instead of a file")
	cmd.Flags().Int64Var(&chatID, "chat", 0, "Telegram chat ID (default from config)")
	cmd.Flags().StringVar(&caption, "caption", "", "Document caption")
	return cmd
}

package telegram

import (
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// NewAPI connects to the Bot API and, when webhookURL is set, points the
// bot's webhook at it.
func NewAPI(token, webhookURL string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if webhookURL == "" {
		return api, nil
	}
	webhook, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	if _, err := api.Request(webhook); err != nil {
		return nil, err
	}
	log.Info().Str("url", webhookURL).Msg("telegram: webhook set")
	return api, nil
}

// WebhookHandler decodes updates and hands messages to h.
func WebhookHandler(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		if update.Message == nil {
			log.Debug().Msg("webhook: non-message update received")
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Info().Int64("chat_id", update.Message.Chat.ID).Str("text", update.Message.Text).Msg("webhook: message")
		go h.HandleMessage(update.Message)
		w.WriteHeader(http.StatusOK)
	}
}

package telegram

import (
	"bytes"
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"backtestplot/internal/figure"
	"backtestplot/internal/finance"
)

// Sender is the part of the Bot API the publisher uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Publisher sends rendered figures to Telegram chats.
type Publisher struct {
	api     Sender
	breaker *gobreaker.CircuitBreaker
	size    figure.Size
}

func NewPublisher(api Sender, size figure.Size) *Publisher {
	st := gobreaker.Settings{
		Name:     "telegram",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("telegram: breaker state changed")
		},
	}
	return &Publisher{api: api, breaker: gobreaker.NewCircuitBreaker(st), size: size}
}

func (p *Publisher) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.breaker.Execute(func() (any, error) {
		return p.api.Send(c)
	})
	return err
}

// Publish sends the figure of a batch as a PDF document followed by a PNG
// preview of the return trajectories.
func (p *Publisher) Publish(ctx context.Context, chatID int64, b *finance.Batch, caption string) error {
	s, err := finance.Summarize(b)
	if err != nil {
		return err
	}
	var pdf bytes.Buffer
	if err := figure.Render(&pdf, "pdf", b, p.size); err != nil {
		return fmt.Errorf("failed to render figure: %w", err)
	}
	preview, err := finance.MakeReturnsPreview(b, s)
	if err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}
	if caption == "" {
		caption = finance.PreviewCaption(b)
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "cumulative_returns_and_weights.pdf", Bytes: pdf.Bytes()})
	doc.Caption = caption
	if err := p.send(ctx, doc); err != nil {
		return fmt.Errorf("failed to send figure: %w", err)
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "cumulative_returns.png", Bytes: preview})
	photo.Caption = fmt.Sprintf("Best run %d • Worst run %d", s.Best, s.Worst)
	if err := p.send(ctx, photo); err != nil {
		return fmt.Errorf("failed to send preview: %w", err)
	}
	log.Info().Int64("chat_id", chatID).Int("runs", b.Runs()).Int("pdf_bytes", pdf.Len()).Msg("telegram: figure published")
	return nil
}

// Reply sends a plain text message.
func (p *Publisher) Reply(ctx context.Context, chatID int64, text string) error {
	return p.send(ctx, tgbotapi.NewMessage(chatID, text))
}

// ReplyPreformatted sends text verbatim in an escaped HTML <pre> block.
func (p *Publisher) ReplyPreformatted(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, "<pre>"+tgbotapi.EscapeText(tgbotapi.ModeHTML, text)+"</pre>")
	msg.ParseMode = tgbotapi.ModeHTML
	return p.send(ctx, msg)
}

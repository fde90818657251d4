package telegram

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"backtestplot/internal/finance"
	"backtestplot/internal/storage"
)

var (
	// /runs
	reRuns = regexp.MustCompile(`^/runs(?:@[\w_]+)?$`)
	// /figure RUN_ID
	reFigure = regexp.MustCompile(`^/figure(?:@[\w_]+)?\s+([0-9A-Za-z-]+)$`)
	// /summary RUN_ID
	reSummary = regexp.MustCompile(`^/summary(?:@[\w_]+)?\s+([0-9A-Za-z-]+)$`)
	// /help
	reHelp = regexp.MustCompile(`^/(help|start)(?:@[\w_]+)?$`)
)

// RunSource looks up stored runs.
type RunSource interface {
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	ListRuns(ctx context.Context, limit int) ([]storage.Run, error)
}

// Commenter writes a short commentary on a markdown summary.
type Commenter interface {
	Comment(ctx context.Context, summary string) (string, error)
}

type Handlers struct {
	pub     *Publisher
	runs    RunSource
	comment Commenter // optional
	timeout time.Duration
}

func NewHandlers(pub *Publisher, runs RunSource, comment Commenter) *Handlers {
	return &Handlers{pub: pub, runs: runs, comment: comment, timeout: 45 * time.Second}
}

func (h *Handlers) HandleMessage(m *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	chatID := m.Chat.ID
	txt := strings.TrimSpace(m.Text)
	switch {
	case reRuns.MatchString(txt):
		h.handleRuns(ctx, chatID)

	case reFigure.MatchString(txt):
		id := reFigure.FindStringSubmatch(txt)[1]
		h.handleFigure(ctx, chatID, id)

	case reSummary.MatchString(txt):
		id := reSummary.FindStringSubmatch(txt)[1]
		h.handleSummary(ctx, chatID, id)

	case reHelp.MatchString(txt):
		h.handleHelp(ctx, chatID)
	}
}

func (h *Handlers) handleRuns(ctx context.Context, chatID int64) {
	runs, err := h.runs.ListRuns(ctx, 20)
	if err != nil {
		h.reply(ctx, chatID, "Listing runs failed: "+err.Error())
		return
	}
	if len(runs) == 0 {
		h.reply(ctx, chatID, "No runs stored yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Stored runs\n\n")
	for _, r := range runs {
		fmt.Fprintf(&sb, "- %s • %s • %s\n", r.ID, r.Name, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	h.reply(ctx, chatID, sb.String())
}

func (h *Handlers) loadBatch(ctx context.Context, id string) (*storage.Run, *finance.Batch, error) {
	run, err := h.runs.GetRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	b, err := run.Batch()
	if err != nil {
		return nil, nil, err
	}
	return run, b, nil
}

func (h *Handlers) handleFigure(ctx context.Context, chatID int64, id string) {
	run, b, err := h.loadBatch(ctx, id)
	if err != nil {
		h.reply(ctx, chatID, fmt.Sprintf("Couldn’t load run %s: %v", id, err))
		return
	}
	caption := run.Name + " • " + finance.PreviewCaption(b)
	if err := h.pub.Publish(ctx, chatID, b, caption); err != nil {
		log.Error().Err(err).Str("run", id).Msg("telegram: publish failed")
		h.reply(ctx, chatID, "Figure failed: "+err.Error())
	}
}

func (h *Handlers) handleSummary(ctx context.Context, chatID int64, id string) {
	_, b, err := h.loadBatch(ctx, id)
	if err != nil {
		h.reply(ctx, chatID, fmt.Sprintf("Couldn’t load run %s: %v", id, err))
		return
	}
	s, err := finance.Summarize(b)
	if err != nil {
		h.reply(ctx, chatID, "Summary failed: "+err.Error())
		return
	}
	md := finance.MarkdownSummary(b, s)
	out := md
	if h.comment != nil {
		c, err := h.comment.Comment(ctx, md)
		if err != nil {
			log.Warn().Err(err).Msg("telegram: commentary failed")
		} else {
			out += "\n" + c
		}
	}
	if err := h.pub.ReplyPreformatted(ctx, chatID, out); err != nil {
		log.Error().Err(err).Msg("telegram: send failed")
	}
}

func (h *Handlers) handleHelp(ctx context.Context, chatID int64) {
	help := "Commands\n\n" +
		"- /runs - List stored backtest runs\n" +
		"- /figure RUN_ID - Cumulative returns and weights figure (PDF + preview)\n" +
		"- /summary RUN_ID - Statistics of the mean, best and worst runs"
	h.reply(ctx, chatID, help)
}

func (h *Handlers) reply(ctx context.Context, chatID int64, text string) {
	if err := h.pub.Reply(ctx, chatID, text); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("telegram: reply failed")
	}
}

package openai

import (
	"context"
	"fmt"
	"strings"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = `You are a quantitative analyst reviewing the results of a batch of portfolio backtests.
You receive a markdown summary with statistics for the mean, best and worst runs and the mean final allocation.

Write a short commentary (at most 6 bullet points) covering:
- How wide the spread between best and worst runs is and what it says about robustness
- Whether the mean run beats a flat (1.0) cumulative return
- Drawdown and volatility of the mean run
- Any concentration in the mean final allocation

Do not repeat the table. Do not give investment advice.`

// Narrator writes commentary on backtest summaries with a chat model.
type Narrator struct {
	cli   oa.Client
	model string
}

func NewNarrator(apiKey, model string) *Narrator {
	if model == "" {
		model = "gpt-4"
	}
	client := oa.NewClient(option.WithAPIKey(apiKey))
	return &Narrator{cli: client, model: model}
}

func (n *Narrator) Comment(ctx context.Context, summary string) (string, error) {
	resp, err := n.cli.Chat.Completions.New(ctx, chatParams(n.model, summary))
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func chatParams(model, summary string) oa.ChatCompletionNewParams {
	return oa.ChatCompletionNewParams{
		Model: oa.ChatModel(model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(systemPrompt),
			oa.UserMessage(userPrompt(summary)),
		},
		MaxTokens: oa.Int(600),
	}
}

func userPrompt(summary string) string {
	return "Backtest summary:\n\n" + strings.TrimSpace(summary) + "\n\nWrite the commentary."
}

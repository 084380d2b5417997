package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"fluxo/internal/domain/report"
)

// DefaultModelName is the Gemini model used for insight generation.
const DefaultModelName = "gemini-2.0-flash"

// Client generates monthly spending insights with Gemini. It implements
// report.InsightGenerator; callers substitute fallback content on any
// error, so this client never needs to degrade on its own.
type Client struct {
	model string
	log   zerolog.Logger
}

// NewClient creates an insight client for the given model name (empty for
// the default).
func NewClient(model string, log zerolog.Logger) *Client {
	if model == "" {
		model = DefaultModelName
	}
	return &Client{model: model, log: log}
}

// Generate asks the model for three short insights about the month's
// numbers. It expects a STRICT JSON array of strings back.
func (c *Client) Generate(ctx context.Context, month time.Time, stats *report.MonthStats) ([]string, error) {
	prompt := buildPrompt(month, stats)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("insights: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("insights: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("insights: empty response from model")
	}

	// Clean up Markdown fences / extra text if the model ignored instructions.
	clean := cleanModelJSON(rawText)

	var parsed []string
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("insights: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("insights: model returned no insights")
	}

	return parsed, nil
}

func buildPrompt(month time.Time, stats *report.MonthStats) string {
	var b strings.Builder
	b.WriteString("You are a personal finance assistant.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Analyze this month's spending summary and write exactly 3 concise, actionable insights.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a JSON array of exactly 3 strings.\n")
	b.WriteString("- Do NOT wrap the response in code fences.\n")
	b.WriteString("- Output must begin with \"[\" and end with \"]\".\n\n")

	fmt.Fprintf(&b, "Month: %s\n", month.Format("January 2006"))
	fmt.Fprintf(&b, "Total income: %s\n", stats.TotalIncome.StringFixed(2))
	fmt.Fprintf(&b, "Total expenses: %s\n", stats.TotalExpense.StringFixed(2))
	fmt.Fprintf(&b, "Net: %s\n", stats.TotalIncome.Sub(stats.TotalExpense).StringFixed(2))

	if len(stats.ByCategory) > 0 {
		b.WriteString("Expenses by category:\n")
		names := make([]string, 0, len(stats.ByCategory))
		for name := range stats.ByCategory {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  - %s: %s\n", name, stats.ByCategory[name].StringFixed(2))
		}
	}

	return b.String()
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}

var _ report.InsightGenerator = (*Client)(nil)

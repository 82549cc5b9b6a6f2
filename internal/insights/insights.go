// Package insights turns computed metrics into a short plain-language
// narrative for the dashboard. It is strictly optional: analytics never
// depends on it and its errors never affect the numeric views.
package insights

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/mfarias/fudo-analytics/internal/domain"
)

// Narrative asks Gemini for a three-to-five sentence summary of the batch.
// Credentials come from the environment, as with the other Google clients.
func Narrative(ctx context.Context, model string, summary domain.Summary, daily []domain.DailySales) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("Narrative: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildPrompt(summary, daily)},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Narrative: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("Narrative: empty response from model")
	}
	return text, nil
}

// buildPrompt renders the metrics the model is allowed to talk about. The
// model gets numbers, not raw sales; it can summarize but not invent detail.
func buildPrompt(summary domain.Summary, daily []domain.DailySales) string {
	var b strings.Builder
	b.WriteString("You are an analyst for a restaurant. Write a short summary ")
	b.WriteString("(3-5 sentences, plain text, no markdown) of the following sales metrics. ")
	b.WriteString("Mention the strongest and weakest days and anything notable in the trend. ")
	b.WriteString("Do not invent numbers that are not listed.\n\n")

	fmt.Fprintf(&b, "Total sales: %s\n", summary.TotalSales)
	fmt.Fprintf(&b, "Transactions: %d\n", summary.TotalTransactions)
	fmt.Fprintf(&b, "Average ticket: %s\n", summary.AvgTransaction)
	fmt.Fprintf(&b, "Median ticket: %s\n", summary.MedianTransaction)
	fmt.Fprintf(&b, "Guests served: %d\n", summary.TotalGuests)
	if summary.BestDay != nil {
		fmt.Fprintf(&b, "Best day: %s (%s)\n", summary.BestDay.Date, summary.BestDay.Total)
	}
	if summary.WorstDay != nil {
		fmt.Fprintf(&b, "Worst day: %s (%s)\n", summary.WorstDay.Date, summary.WorstDay.Total)
	}
	if summary.BestHour != nil {
		fmt.Fprintf(&b, "Busiest hour: %02d:00 (%s)\n", summary.BestHour.Hour, summary.BestHour.Total)
	}

	if len(daily) > 0 {
		b.WriteString("\nDaily totals:\n")
		for _, row := range daily {
			fmt.Fprintf(&b, "%s: %s (%d transactions)\n", row.Date, row.Total, row.Transactions)
		}
	}
	return b.String()
}

// Package review drafts reviewer notes for correction records that need
// human investigation. The notes are advisory text for the review queue;
// nothing downstream depends on them, so a model failure never fails a run.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/tax-recon/internal/domain"
)

// DefaultModelName is the Gemini model used for drafting notes.
const DefaultModelName = "gemini-2.0-flash"

// maxItems caps how many records go into one drafting call; the review queue
// rarely needs more, and huge prompts degrade output quality.
const maxItems = 50

// Note is one drafted reviewer note.
type Note struct {
	TransactionID string `json:"transaction_id"`
	Note          string `json:"note"`
}

// Drafter drafts notes for flagged records. The pipeline treats it as
// optional; a nil Drafter skips drafting entirely.
type Drafter interface {
	Draft(ctx context.Context, recs []domain.CorrectionRecord) ([]Note, error)
}

// GeminiDrafter drafts notes with the Gemini API.
type GeminiDrafter struct {
	Model string
}

// NewGeminiDrafter creates a GeminiDrafter with the default model.
func NewGeminiDrafter() *GeminiDrafter {
	return &GeminiDrafter{Model: DefaultModelName}
}

// Draft sends the investigate-action records to the model and returns one
// short note per transaction explaining what a reviewer should check.
func (d *GeminiDrafter) Draft(ctx context.Context, recs []domain.CorrectionRecord) ([]Note, error) {
	items := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		if !rec.HasAction(domain.ActionInvestigate) {
			continue
		}
		items = append(items, map[string]any{
			"transaction_id":  rec.TransactionID,
			"status":          string(rec.Status),
			"current_code_1":  rec.CurrentTaxCode1,
			"current_code_2":  rec.CurrentTaxCode2,
			"suggested_code":  rec.NewTaxCode,
			"reasons":         rec.Reasons,
		})
		if len(items) == maxItems {
			break
		}
	}
	if len(items) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("review.Draft: marshal items: %w", err)
	}

	prompt :=
		"You are assisting a retirement-plan operations analyst reviewing 1099-R tax-code discrepancies.\n\n" +
			"Task:\n" +
			"- For each item below, write ONE short note (max 2 sentences) telling the reviewer what to verify.\n" +
			"- Base the note only on the reason tokens and codes given. Do not invent facts.\n" +
			"- Output STRICT JSON only: a JSON array of objects with fields \"transaction_id\" and \"note\".\n" +
			"- Do NOT wrap the response in code fences.\n" +
			"- Output must begin with \"[\" and end with \"]\".\n\n" +
			"Items:\n" + string(payload)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("review.Draft: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, d.Model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("review.Draft: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("review.Draft: empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var notes []Note
	if err := json.Unmarshal([]byte(clean), &notes); err != nil {
		return nil, fmt.Errorf("review.Draft: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}
	return notes, nil
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

	s = strings.TrimSpace(s)

	// If there's still junk around the JSON array, keep only from the first
	// '[' to the last ']'.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"site-assistant/internal/domain"
)

var errEmptyOutput = errors.New("usecase: completion returned no output")

type categoryChoice struct {
	Category string `json:"category"`
}

func buildClassifierPrompt(p domain.ClassifierProfile, profiles []domain.AgentProfile) string {
	lines := []string{
		strings.TrimSpace(p.Instructions),
		"",
		"Categories:",
	}
	for _, a := range profiles {
		desc := a.Description
		if desc == "" {
			desc = a.Name
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", a.Category, desc))
	}
	lines = append(lines, "", "Output Contract:", classifierOutputContract())
	return strings.Join(lines, "\n")
}

func classifierOutputContract() string {
	return "Return JSON only with a single key category (string) whose value is exactly one of the category labels above."
}

func categorySchema(categories []domain.Category) (*domain.OutputSchema, error) {
	labels := make([]string, 0, len(categories))
	for _, c := range categories {
		labels = append(labels, string(c))
	}
	def, err := json.Marshal(map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"category": map[string]any{"type": "string", "enum": labels},
		},
		"required": []string{"category"},
	})
	if err != nil {
		return nil, fmt.Errorf("usecase: marshal category schema: %w", err)
	}
	return &domain.OutputSchema{Name: "category_choice", Definition: def}, nil
}

func buildClassifierMessages(systemPrompt, message string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: message},
	}
}

func buildResponderMessages(p domain.AgentProfile, message string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildResponderPrompt(p)},
		{Role: domain.RoleUser, Content: message},
	}
}

func buildResponderPrompt(p domain.AgentProfile) string {
	lines := []string{strings.TrimSpace(p.Instructions), "", "Approved Links:"}
	if len(p.Links) == 0 {
		lines = append(lines, "None. Do not share any links.")
	}
	for _, l := range p.Links {
		lines = append(lines, "- "+l)
	}
	return strings.Join(lines, "\n")
}

// parseClassification accepts either the structured {"category": "..."}
// object or a bare label. The returned category may fall outside the enum;
// dispatch decides what to do with it.
func parseClassification(raw string) (domain.Category, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errEmptyOutput
	}
	label := raw
	if strings.HasPrefix(raw, "{") {
		var out categoryChoice
		dec := json.NewDecoder(bytes.NewBufferString(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&out); err != nil {
			return "", fmt.Errorf("usecase: decode category: %w", err)
		}
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			if err == nil {
				return "", errors.New("usecase: decode category: multiple JSON values")
			}
			return "", fmt.Errorf("usecase: decode category trailing data: %w", err)
		}
		label = out.Category
	}
	category, _ := domain.ParseCategory(label)
	if category == "" {
		return "", errors.New("usecase: classifier returned an empty category")
	}
	return category, nil
}

package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"title-classifier/internal/ai"
	"title-classifier/internal/taxonomy"
	"title-classifier/internal/util"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Suggester asks Gemini for a classification proposal when the keyword and
// fuzzy engines come up empty.
type Suggester struct {
	generator contentGenerator
	minScore  float64
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewSuggester(generator contentGenerator, minScore float64, maxLogLength int, logger *zap.Logger) *Suggester {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Suggester{
		generator: generator,
		minScore:  minScore,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (s *Suggester) Suggest(ctx context.Context, title string, snap *taxonomy.Snapshot) (*ai.Suggestion, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if snap == nil {
		return nil, fmt.Errorf("taxonomy snapshot is required")
	}

	taxonomyPayload := map[string]any{
		"functions": snap.Functions,
		"seniority": snap.Seniority,
	}

	taxonomyJSON, err := json.MarshalIndent(taxonomyPayload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal taxonomy payload: %w", err)
	}

	prompt := buildPrompt(title, string(taxonomyJSON))

	s.logger.Debug("gemini suggestion request",
		zap.String("title", title),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", util.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini suggestion response",
		zap.String("title", title),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, s.maxLogLen)),
	)

	suggestion, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	suggestion.Confident = true
	if s.minScore > 0 && suggestion.Score < s.minScore {
		s.logger.Debug("suggestion below score threshold",
			zap.String("title", title),
			zap.Float64("score", suggestion.Score),
			zap.Float64("threshold", s.minScore),
		)
		suggestion.Confident = false
	}

	suggestion.Raw = raw
	return suggestion, nil
}

func buildPrompt(title, taxonomyJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Title:\n{{TITLE}}\n\nTaxonomy:\n{{TAXONOMY_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{TITLE}}", title)
	prompt = strings.ReplaceAll(prompt, "{{TAXONOMY_JSON}}", taxonomyJSON)
	return prompt
}

func parseResponse(raw string) (*ai.Suggestion, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		score = 0
	}

	return &ai.Suggestion{
		Function:    coerceString(data["function"]),
		SubFunction: coerceString(data["sub_function"]),
		Seniority:   coerceString(data["seniority"]),
		Score:       score,
		Reason:      coerceString(data["reason"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

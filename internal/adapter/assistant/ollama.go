package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deckardhq/deckard/internal/entity"
)

// Config holds the connection settings for a local Ollama instance.
type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// Ollama talks to the Ollama generate API. It implements both the
// topic extractor and card generator capabilities.
type Ollama struct {
	cfg    Config
	client *http.Client
	logger *logrus.Logger
}

// NewOllama constructs a client. Host defaults to the standard local
// endpoint, model to a small instruct model.
func NewOllama(cfg Config, logger *logrus.Logger) *Ollama {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen2.5:0.5b"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Ollama{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

const (
	generateContentClamp = 8000
	extractContentClamp  = 4000
)

// GenerateCards asks the model for count cards about a topic drawn from
// its own knowledge. The avoid list steers it away from prompts the
// caller already has.
func (o *Ollama) GenerateCards(ctx context.Context, topic string, count int, avoid []string) ([]entity.GeneratedCard, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are an expert educator creating flashcards for students.

Generate %d high-quality flashcards about "%s".

INSTRUCTIONS:
1. Create clear, concise questions that test understanding
2. Provide accurate, complete answers
3. Focus on key terms, definitions, processes, and relationships
4. Make questions suitable for spaced repetition study
`, count, topic)
	if len(avoid) > 0 {
		sb.WriteString("\nDo NOT repeat any of these existing questions:\n")
		for i, front := range avoid {
			if i == 30 {
				break
			}
			sb.WriteString("- " + front + "\n")
		}
	}
	fmt.Fprintf(&sb, `
Return ONLY a valid JSON array in this exact format:
[
  {
    "front": "Question text here?",
    "back": "Answer text here",
    "tags": ["concept", "keyword"]
  }
]

Generate exactly %d flashcards. Return ONLY the JSON array, no other text.`, count)

	raw, err := o.generate(ctx, sb.String(), 0.7, 2000)
	if err != nil {
		return nil, err
	}
	return parseCards(raw)
}

// GenerateFromText asks the model for cards grounded in the given
// source text.
func (o *Ollama) GenerateFromText(ctx context.Context, topic, text string, max int) ([]entity.GeneratedCard, error) {
	prompt := fmt.Sprintf(`You are an expert educator creating flashcards for students.

Given the following content about "%s", generate %d high-quality flashcards.

CONTENT:
%s

INSTRUCTIONS:
1. Extract the most important concepts, facts, and relationships
2. Create clear, concise questions that test understanding
3. Provide accurate, complete answers
4. Focus on key terms, definitions, processes, and relationships
5. Make questions suitable for spaced repetition study

Return ONLY a valid JSON array in this exact format:
[
  {
    "front": "Question text here?",
    "back": "Answer text here",
    "tags": ["concept", "keyword"]
  }
]

Generate exactly %d flashcards. Return ONLY the JSON array, no other text.`, topic, max, clamp(text, generateContentClamp), max)

	raw, err := o.generate(ctx, prompt, 0.7, 2000)
	if err != nil {
		return nil, err
	}
	return parseCards(raw)
}

// ExtractTopics labels the text with up to max topics. Model failures
// degrade to frequency-based keyword extraction rather than erroring,
// so topic labeling keeps working without a model.
func (o *Ollama) ExtractTopics(ctx context.Context, text string, max int) ([]string, error) {
	prompt := fmt.Sprintf(`Analyze the following text and extract the %d most important topics or themes.

TEXT:
%s

Return ONLY a JSON array of topic strings, like: ["Topic 1", "Topic 2", "Topic 3"]

Topics:`, max, clamp(text, extractContentClamp))

	raw, err := o.generate(ctx, prompt, 0.5, 200)
	if err != nil {
		o.logger.WithError(err).Debug("topic extraction fell back to keywords")
		return ExtractKeywords(text, max), nil
	}

	jsonStr, ok := extractJSONArray(raw)
	if !ok {
		return ExtractKeywords(text, max), nil
	}
	var topics []string
	if err := json.Unmarshal([]byte(jsonStr), &topics); err != nil {
		return ExtractKeywords(text, max), nil
	}

	cleaned := make([]string, 0, max)
	for _, topic := range topics {
		if t := strings.TrimSpace(topic); t != "" {
			cleaned = append(cleaned, t)
		}
		if len(cleaned) == max {
			break
		}
	}
	if len(cleaned) == 0 {
		return ExtractKeywords(text, max), nil
	}
	return cleaned, nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (o *Ollama) generate(ctx context.Context, prompt string, temperature float64, numPredict int) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   o.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: temperature, NumPredict: numPredict},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("model returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return strings.TrimSpace(decoded.Response), nil
}

// parseCards extracts the JSON array from model output that may carry
// prose around it, then keeps only items with usable text.
func parseCards(raw string) ([]entity.GeneratedCard, error) {
	jsonStr, ok := extractJSONArray(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var items []entity.GeneratedCard
	if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
		return nil, fmt.Errorf("decode cards: %w", err)
	}

	valid := make([]entity.GeneratedCard, 0, len(items))
	for _, item := range items {
		item.Front = strings.TrimSpace(item.Front)
		item.Back = strings.TrimSpace(item.Back)
		if !item.Valid() {
			continue
		}
		valid = append(valid, item)
	}
	return valid, nil
}

func extractJSONArray(s string) (string, bool) {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func clamp(s string, max int) string {
	return entity.TruncateText(s, max)
}

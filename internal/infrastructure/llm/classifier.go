// Package llm implements the category classifier on top of a
// Gemini-compatible generateContent endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"TenderScanner/internal/config"
	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// GeminiClassifier labels a record excerpt with a category pair. After the
// primary model reports quota exhaustion the client switches to the
// fallback model for the rest of the process lifetime.
type GeminiClassifier struct {
	endpoint      string
	model         string
	fallbackModel string
	apiKey        string
	httpClient    *http.Client
	logger        *slog.Logger

	mu     sync.Mutex
	active string
}

var _ ports.Classifier = (*GeminiClassifier)(nil)

// NewGeminiClassifier builds a classifier from configuration.
func NewGeminiClassifier(cfg config.ClassifierConfig, logger *slog.Logger) *GeminiClassifier {
	return &GeminiClassifier{
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		apiKey:        cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With("component", "classifier"),
		active: cfg.Model,
	}
}

// Classify asks for a strict two-field JSON verdict on the excerpt. Any
// deviation from the expected response shape is an error; the caller falls
// back to the unclassified sentinel.
func (c *GeminiClassifier) Classify(ctx context.Context, excerpt string) (domain.Classification, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return domain.Classification{}, fmt.Errorf("classifier misconfigured")
	}

	text, err := c.generate(ctx, buildPrompt(excerpt))
	if err != nil {
		return domain.Classification{}, err
	}

	verdict, err := parseVerdict(text)
	if err != nil {
		return domain.Classification{}, err
	}
	return verdict.Normalize(), nil
}

func (c *GeminiClassifier) generate(ctx context.Context, prompt string) (string, error) {
	model := c.activeModel()

	text, err := c.call(ctx, model, prompt)
	if err == nil {
		return text, nil
	}
	if !isQuotaError(err) || model == c.fallbackModel || c.fallbackModel == "" {
		return "", err
	}

	c.switchToFallback()
	return c.call(ctx, c.fallbackModel, prompt)
}

func (c *GeminiClassifier) activeModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *GeminiClassifier) switchToFallback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != c.fallbackModel {
		c.logger.Warn("primary model quota exhausted, switching to fallback",
			"primary", c.model, "fallback", c.fallbackModel)
		c.active = c.fallbackModel
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClassifier) call(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal classify payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", c.endpoint, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &apiError{
			status: resp.StatusCode,
			body:   strings.TrimSpace(string(payload)),
		}
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode classify response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("classify response has no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("classifier API error %d: %s", e.status, e.body)
}

func isQuotaError(err error) bool {
	api, ok := err.(*apiError)
	if ok && api.status == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}

func buildPrompt(excerpt string) string {
	categories := strings.Join(domain.GeneralCategories, ", ")
	return fmt.Sprintf(`Analiza el siguiente contenido de una licitación y clasifícalo en dos aspectos:

1. RUBRO: Identifica el rubro específico del proceso (ej: "Servicios de limpieza", "Equipamiento médico", "Software", etc.)
2. CATEGORIA_GENERAL: Selecciona UNA de estas categorías: %s

Contenido a analizar:
%s

Responde ÚNICAMENTE con un JSON válido en este formato exacto:
{"rubro": "tu_clasificacion_de_rubro", "categoria_general": "categoria_seleccionada"}

No agregues texto adicional, solo el JSON.`, categories, excerpt)
}

// parseVerdict decodes the model output, tolerating markdown code fences
// but nothing else.
func parseVerdict(text string) (domain.Classification, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var verdict struct {
		Rubro            *string `json:"rubro"`
		CategoriaGeneral *string `json:"categoria_general"`
	}
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		return domain.Classification{}, fmt.Errorf("verdict is not valid JSON: %w", err)
	}
	if verdict.Rubro == nil || verdict.CategoriaGeneral == nil {
		return domain.Classification{}, fmt.Errorf("verdict missing required fields")
	}
	return domain.Classification{
		Category:        *verdict.Rubro,
		GeneralCategory: *verdict.CategoriaGeneral,
	}, nil
}

package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/liveshow/internal/domain"
)

// Provider is the external machine-translation service.
type Provider interface {
	Translate(ctx context.Context, text, target, source string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, text, target, source string) (string, error)

func (f ProviderFunc) Translate(ctx context.Context, text, target, source string) (string, error) {
	return f(ctx, text, target, source)
}

const maxResponseBytes = 1 << 20

// HTTPProvider talks to a LibreTranslate-compatible API.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

func (p *HTTPProvider) Translate(ctx context.Context, text, target, source string) (string, error) {
	if source == "" {
		source = AutoSource
	}
	body, err := json.Marshal(libreRequest{Q: text, Source: source, Target: target, Format: "text", APIKey: p.apiKey})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", domain.ErrTranslationProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", domain.ErrTranslationProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranslationProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected status %d", domain.ErrTranslationProvider, resp.StatusCode)
	}

	var out libreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrTranslationProvider, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", domain.ErrTranslationProvider, out.Error)
	}
	if strings.TrimSpace(out.TranslatedText) == "" {
		return "", fmt.Errorf("%w: empty translation", domain.ErrTranslationProvider)
	}
	return out.TranslatedText, nil
}

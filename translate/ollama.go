// Package translate is the transform collaborator: a client for a local
// ollama-style inference service. Timeouts and transport errors are
// returned as-is; the engine's retry policy decides what to do with them.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var langNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"ru": "Russian",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
}

// Ollama translates chunk text through a local inference endpoint.
type Ollama struct {
	BaseURL    string
	ModelName  string
	SourceLang string
	TargetLang string
	HTTP       *http.Client
}

// New builds a client with its own timeout-bounded transport; the timeout
// is what bounds an in-flight call once cancellation is requested.
func New(baseURL, model, sourceLang string, timeout time.Duration) *Ollama {
	return &Ollama{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ModelName:  model,
		SourceLang: sourceLang,
		TargetLang: "pt",
		HTTP:       &http.Client{Timeout: timeout},
	}
}

func (o *Ollama) Model() string { return o.ModelName }

func (o *Ollama) Params() string {
	return fmt.Sprintf("translate:%s->%s;temp=0.3", o.SourceLang, o.TargetLang)
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Transform sends one chunk for translation and returns the model output.
func (o *Ollama) Transform(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   o.ModelName,
		Prompt:  o.prompt(text),
		Stream:  false,
		Options: map[string]any{"temperature": 0.3},
	})
	if err != nil {
		return "", fmt.Errorf("translate: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate: status %s", resp.Status)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	if out.Response == "" {
		return "", fmt.Errorf("translate: empty response from model")
	}
	return strings.TrimSpace(out.Response), nil
}

func (o *Ollama) prompt(text string) string {
	source := langName(o.SourceLang)
	target := langName(o.TargetLang)
	return fmt.Sprintf(
		"You are a professional translator. Translate the following text from %s to %s. Only output the translation, nothing else.\n\n%s",
		source, target, text)
}

func langName(code string) string {
	if name, ok := langNames[code]; ok {
		return name
	}
	return code
}

// Ping checks that the inference service is reachable. The run command
// calls it before entering the cycle loop; failure there is fatal.
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("translate: inference service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("translate: inference service returned %s", resp.Status)
	}
	return nil
}

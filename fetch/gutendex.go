// Package fetch pulls new documents from a gutendex-style catalog. Every
// failure here is soft: the daemon logs it, counts it, and moves on.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/JoseRFJuniorLLMs/Googolplex-Books/engine"
)

// maxBookBytes caps a single download; catalog texts beyond this are
// truncated rather than ballooning memory.
const maxBookBytes = 4 << 20

type bookList struct {
	Results []bookMeta `json:"results"`
}

type bookMeta struct {
	ID      int               `json:"id"`
	Title   string            `json:"title"`
	Formats map[string]string `json:"formats"`
}

// Gutendex implements daemon.Acquirer against a gutendex catalog.
type Gutendex struct {
	BaseURL      string
	HTTP         *http.Client
	MaxChunkSize int
}

// Pull lists up to limit books for a language category and downloads their
// plain-text bodies. Books without a usable text format, or whose download
// fails, are skipped with a warning.
func (g *Gutendex) Pull(ctx context.Context, category string, limit int) ([]*engine.WorkUnit, error) {
	listURL := fmt.Sprintf("%s/books?languages=%s", strings.TrimRight(g.BaseURL, "/"), url.QueryEscape(category))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: list %s: %w", category, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: list %s: status %s", category, resp.Status)
	}

	var list bookList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("fetch: decode catalog: %w", err)
	}

	var units []*engine.WorkUnit
	for _, meta := range list.Results {
		if len(units) >= limit {
			break
		}
		textURL := plainTextURL(meta.Formats)
		if textURL == "" {
			continue
		}
		content, err := g.download(ctx, textURL)
		if err != nil {
			log.Warn().Int("book", meta.ID).Str("title", meta.Title).Err(err).Msg("download failed, skipping")
			continue
		}
		units = append(units, engine.NewWorkUnit("book", category, content, g.MaxChunkSize))
	}
	return units, nil
}

func (g *Gutendex) download(ctx context.Context, textURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, textURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBookBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// plainTextURL picks a text/plain format, preferring utf-8.
func plainTextURL(formats map[string]string) string {
	if u, ok := formats["text/plain; charset=utf-8"]; ok {
		return u
	}
	for mime, u := range formats {
		if strings.HasPrefix(mime, "text/plain") {
			return u
		}
	}
	return ""
}

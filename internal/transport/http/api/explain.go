package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	apperrors "dogtranslator/internal/platform/errors"
)

const (
	untitledInsight = "Untitled"
	unknownSource   = "Unknown"
)

// Insight is one article about a behaviour.
type Insight struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

// Explanation is the answer of the explain endpoint.
type Explanation struct {
	Explanation string    `json:"explanation,omitempty"`
	Results     []Insight `json:"results"`
}

// Explain fetches articles and commentary about behavior.
func (c *Client) Explain(ctx context.Context, behavior string) (*Explanation, error) {
	behavior = strings.TrimSpace(behavior)
	if behavior == "" {
		return nil, apperrors.New(apperrors.KindDomain, "api.explain", "behavior cannot be empty")
	}

	req, info := c.newRequest(ctx)
	req.SetQueryParam("behavior", behavior)
	fullURL := c.baseURL + ExplainPath
	c.logger.InfoTag("API", "request", map[string]any{
		"method":          http.MethodGet,
		"url":             fullURL,
		"request_id":      info.id,
		"has_auth":        info.hasAuth,
		"has_attestation": info.hasAttestation,
		"query_chars":     len(behavior),
	})

	start := time.Now()
	resp, err := req.Get(ExplainPath)
	body, err := c.check(http.MethodGet, fullURL, info, resp, err, start)
	if err != nil {
		return nil, err
	}

	out, ok := parseExplanation(body)
	if !ok {
		c.logger.WarnTag("API", "unexpected explain response format", map[string]any{"bytes": len(body)})
	}
	c.logger.InfoTag("API", "behaviour insights received", map[string]any{"articles": len(out.Results)})
	return out, nil
}

// parseExplanation accepts {results:[...]}, {explanation:"..."} or a bare
// array of results. ok is false when the body matched none of them.
func parseExplanation(body []byte) (*Explanation, bool) {
	out := &Explanation{Results: []Insight{}}
	var v any
	if err := sonic.Unmarshal(body, &v); err != nil {
		return out, false
	}

	switch t := v.(type) {
	case []any:
		out.Results = insightsFrom(t)
		return out, true
	case map[string]any:
		matched := false
		if s, ok := t["explanation"].(string); ok {
			out.Explanation = s
			matched = true
		}
		if arr, ok := t["results"].([]any); ok {
			out.Results = insightsFrom(arr)
			matched = true
		}
		return out, matched
	default:
		return out, false
	}
}

func insightsFrom(items []any) []Insight {
	out := make([]Insight, 0, len(items))
	for _, raw := range items {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		in := Insight{
			Title:   stringField(m, "title"),
			Snippet: stringField(m, "snippet"),
			URL:     stringField(m, "url"),
			Source:  stringField(m, "source"),
		}
		if in.Title == "" {
			in.Title = untitledInsight
		}
		if in.Source == "" {
			in.Source = sourceFromURL(in.URL)
		}
		out = append(out, in)
	}
	return out
}

// sourceFromURL returns the host of raw without "www.", or "Unknown".
func sourceFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return unknownSource
	}
	return strings.Replace(u.Hostname(), "www.", "", 1)
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

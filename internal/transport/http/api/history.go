package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/analysis/normalize"
	"dogtranslator/internal/domain/history"
	apperrors "dogtranslator/internal/platform/errors"
)

// History lists the translations the backend saved for the current user.
func (c *Client) History(ctx context.Context) ([]history.RemoteRecord, error) {
	req, info := c.newRequest(ctx)
	fullURL := c.baseURL + HistoryPath
	c.logger.InfoTag("API", "request", map[string]any{
		"method":     http.MethodGet,
		"url":        fullURL,
		"request_id": info.id,
		"has_auth":   info.hasAuth,
	})

	start := time.Now()
	resp, err := req.Get(HistoryPath)
	body, err := c.check(http.MethodGet, fullURL, info, resp, err, start)
	if err != nil {
		return nil, err
	}

	records, err := parseHistory(body)
	if err != nil {
		c.logger.WarnTag("API", "unexpected history response format", map[string]any{"bytes": len(body)})
		return nil, apperrors.Wrap(apperrors.KindTransport, "api.history", "unexpected history response", err)
	}
	return records, nil
}

// parseHistory accepts a bare array or an object wrapping it.
func parseHistory(body []byte) ([]history.RemoteRecord, error) {
	var v any
	if err := sonic.Unmarshal(body, &v); err != nil {
		return nil, err
	}

	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		for _, key := range []string{"history", "results", "items", "data"} {
			if arr, ok := t[key].([]any); ok {
				items = arr
				break
			}
		}
		if items == nil {
			return nil, apperrors.New(apperrors.KindTransport, "api.history", "no record list in response")
		}
	default:
		return nil, apperrors.New(apperrors.KindTransport, "api.history", "response is not a list")
	}

	out := make([]history.RemoteRecord, 0, len(items))
	for _, item := range items {
		switch rec := item.(type) {
		case string:
			out = append(out, history.RemoteRecord{Result: normalize.NormalizeString(rec)})
		case map[string]any:
			raw, err := sonic.Marshal(rec)
			if err != nil {
				continue
			}
			tone, _ := model.ParseTone(stringField(rec, "tone"))
			out = append(out, history.RemoteRecord{
				Result:    normalize.Normalize(raw),
				Tone:      tone,
				ImageURL:  stringField(rec, "image_url", "imageUrl", "image", "filename"),
				CreatedAt: timeField(rec, "created_at", "createdAt", "timestamp"),
			})
		}
	}
	return out, nil
}

// timeField reads RFC 3339 strings or unix timestamps in seconds or
// milliseconds.
func timeField(m map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
				if t, err := time.Parse(layout, v); err == nil {
					return t
				}
			}
		case float64:
			if v > 1e12 {
				return time.UnixMilli(int64(v))
			}
			if v > 0 {
				return time.Unix(int64(v), 0)
			}
		}
	}
	return time.Time{}
}

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogtranslator/internal/domain/analysis/model"
)

// newStatusSequenceServer answers the interpret endpoint with the given
// statuses in order, repeating the last one.
func newStatusSequenceServer(t *testing.T, hits *int32, statuses ...int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(hits, 1))
		status := statuses[min(n, len(statuses))-1]
		w.WriteHeader(status)
		if status == http.StatusOK {
			names := []string{"first", "second", "third"}
			fmt.Fprintf(w, `{"status":"ok","explanation":%q,"confidence":0.8}`, names[min(n, 3)-1])
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func jsonServer(t *testing.T, path, body string, seen *string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			*seen = r.URL.Query().Get("behavior")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL})
}

func TestExplainResultsObject(t *testing.T) {
	var behavior string
	c := jsonServer(t, ExplainPath, `{"status":"ok","results":[
		{"title":"Why dogs wag","snippet":"Tails...","url":"https://www.akc.org/wag"},
		{"snippet":"no title","url":"::bad","source":"vets.com"},
		{"title":"No url"}
	]}`, &behavior)

	out, err := c.Explain(context.Background(), "tail wagging")
	require.NoError(t, err)
	assert.Equal(t, "tail wagging", behavior)
	require.Len(t, out.Results, 3)
	assert.Equal(t, Insight{Title: "Why dogs wag", Snippet: "Tails...", URL: "https://www.akc.org/wag", Source: "akc.org"}, out.Results[0])
	assert.Equal(t, "Untitled", out.Results[1].Title)
	assert.Equal(t, "vets.com", out.Results[1].Source)
	assert.Equal(t, "Unknown", out.Results[2].Source)
}

func TestExplainLegacyShapes(t *testing.T) {
	c := jsonServer(t, ExplainPath, `[{"title":"A","url":"https://example.org/a"}]`, nil)
	out, err := c.Explain(context.Background(), "barking")
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "example.org", out.Results[0].Source)

	c = jsonServer(t, ExplainPath, `{"explanation":"Dogs bark to alert."}`, nil)
	out, err = c.Explain(context.Background(), "barking")
	require.NoError(t, err)
	assert.Equal(t, "Dogs bark to alert.", out.Explanation)
	assert.Empty(t, out.Results)

	c = jsonServer(t, ExplainPath, `"surprise"`, nil)
	out, err = c.Explain(context.Background(), "barking")
	require.NoError(t, err)
	assert.Empty(t, out.Results)

	_, err = c.Explain(context.Background(), "   ")
	assert.Error(t, err)
}

func TestHistoryParsesAndNormalizes(t *testing.T) {
	c := jsonServer(t, HistoryPath, `[
		{"status":"ok","explanation":"Play with me","confidence":0.9,"share_id":"s1","tone":"calm","created_at":"2024-05-01T10:00:00Z","image_url":"https://cdn/x.jpg"},
		{"explanation":"{\"explanation\": \"Stay\"}","confidence":"80%","share_id":"s2","timestamp":1714557600000},
		"plain text record"
	]`, nil)

	records, err := c.History(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "Play with me", records[0].Result.Explanation)
	assert.Equal(t, "s1", records[0].Result.ShareID)
	assert.Equal(t, model.ToneCalm, records[0].Tone)
	assert.Equal(t, "https://cdn/x.jpg", records[0].ImageURL)
	assert.Equal(t, 2024, records[0].CreatedAt.Year())

	assert.Equal(t, "Stay", records[1].Result.Explanation)
	assert.InDelta(t, 0.8, records[1].Result.Confidence, 1e-9)
	assert.Equal(t, int64(1714557600000), records[1].CreatedAt.UnixMilli())

	assert.Equal(t, "plain text record", records[2].Result.Explanation)
}

func TestHistoryWrappedAndInvalid(t *testing.T) {
	c := jsonServer(t, HistoryPath, `{"history":[{"status":"ok","explanation":"x","confidence":0.4,"share_id":"a"}]}`, nil)
	records, err := c.History(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	c = jsonServer(t, HistoryPath, `{"nothing":"here"}`, nil)
	_, err = c.History(context.Background())
	assert.Error(t, err)
}

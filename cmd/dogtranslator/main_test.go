package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogtranslator/internal/bootstrap"
	"dogtranslator/internal/domain/speech"
	"dogtranslator/internal/platform/config"
	testutil "dogtranslator/internal/platform/testing"
	"dogtranslator/internal/transport/http/api"
)

type backend struct {
	mu    sync.Mutex
	auth  []string
	tones []string
	reply string
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(api.InterpretPath, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.auth = append(b.auth, r.Header.Get("Authorization"))
		b.tones = append(b.tones, r.FormValue("tone"))
		reply := b.reply
		b.mu.Unlock()
		if reply == "" {
			reply = `{"status":"ok","explanation":"Let's play fetch!","confidence":0.87,"breed":"Corgi","share_id":"abc"}`
		}
		io.WriteString(w, reply)
	})
	mux.HandleFunc(api.ExplainPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"status":"ok","results":[{"title":"About %s","snippet":"It means joy.","url":"https://www.akc.org/x"}]}`, r.URL.Query().Get("behavior"))
	})
	mux.HandleFunc(api.HistoryPath, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `[{"status":"ok","explanation":"Remote one","confidence":0.7,"share_id":"r1","tone":"calm"}]`)
	})
	return mux
}

type silentSynth struct{}

func (silentSynth) Synthesize(context.Context, string, string, speech.VoiceSettings) ([]byte, error) {
	return []byte("not really mp3"), nil
}

type harness struct {
	t   *testing.T
	cfg *config.Config
	be  *backend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	be := &backend{}
	srv := httptest.NewServer(be.handler(t))
	t.Cleanup(srv.Close)

	cfg := testutil.SetupTestConfig(t)
	cfg.API.BaseURL = srv.URL
	cfg.Storage.KV.Driver = "sqlite"
	return &harness{t: t, cfg: cfg, be: be}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), bootstrap.Options{
		Config:      h.cfg,
		Console:     io.Discard,
		Synthesizer: silentSynth{},
	}, args, &out, io.Discard)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "dogtranslator %s", strings.Join(args, " "))
	return out
}

func writePhoto(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y += 3 {
		for x := 0; x < 320; x += 3 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "rex.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestAnalyzeSavesToHistory(t *testing.T) {
	h := newHarness(t)
	photo := writePhoto(t)

	out := h.mustRun("analyze", photo, "--tone", "Trainer", "--save")
	assert.Contains(t, out, "Let's play fetch!")
	assert.Contains(t, out, "confidence: 87%")
	assert.Contains(t, out, "breed: Corgi")
	assert.Equal(t, []string{"trainer"}, h.be.tones)

	out = h.mustRun("history", "list")
	assert.Contains(t, out, "Let's play fetch!")
	assert.Contains(t, out, "trainer")

	out = h.mustRun("status")
	assert.Contains(t, out, "history: 1")
	assert.Contains(t, out, "scans today: 1 (4 left)")
	assert.Contains(t, out, "network: online")
}

func TestAnalyzeRespectsDailyLimit(t *testing.T) {
	h := newHarness(t)
	h.cfg.Scans.DailyFreeLimit = 1
	photo := writePhoto(t)

	h.mustRun("analyze", photo)
	_, err := h.run("analyze", photo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--skip-limit")

	h.mustRun("analyze", photo, "--skip-limit")
	assert.Len(t, h.be.tones, 2)

	h.mustRun("settings", "--premium")
	h.mustRun("analyze", photo)
	assert.Len(t, h.be.tones, 3)
}

func TestAnalyzeOfflineQueuesAndReplays(t *testing.T) {
	h := newHarness(t)
	online := h.cfg.API.BaseURL
	dead := httptest.NewServer(http.NotFoundHandler())
	h.cfg.API.BaseURL = dead.URL
	dead.Close()

	photo := writePhoto(t)
	out := h.mustRun("analyze", photo, "--tone", "calm")
	assert.Contains(t, out, "Saved for later")

	out = h.mustRun("queue", "list")
	assert.Contains(t, out, "calm")
	assert.Contains(t, out, photo)

	out = h.mustRun("queue", "replay")
	assert.Contains(t, out, "remaining 1")
	assert.Contains(t, out, "stopped: Could not reach the translation service")

	h.cfg.API.BaseURL = online
	out = h.mustRun("queue", "replay")
	assert.Contains(t, out, "Let's play fetch!")
	assert.Contains(t, out, "replayed 1, dropped 0, remaining 0")
	assert.Equal(t, []string{"calm"}, h.be.tones)

	out = h.mustRun("queue", "list")
	assert.Contains(t, out, "Queue is empty.")
}

func TestQueueRemoveAndClear(t *testing.T) {
	h := newHarness(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	h.cfg.API.BaseURL = dead.URL
	dead.Close()

	photo := writePhoto(t)
	h.mustRun("analyze", photo)
	h.mustRun("analyze", photo)

	app, err := bootstrap.New(context.Background(), bootstrap.Options{Config: h.cfg, Console: io.Discard})
	require.NoError(t, err)
	items, err := app.Queue.List(context.Background())
	require.NoError(t, err)
	require.NoError(t, app.Close(context.Background()))
	require.Len(t, items, 2)

	out := h.mustRun("queue", "remove", items[0].ID)
	assert.Contains(t, out, "Removed "+items[0].ID)
	out = h.mustRun("queue", "list")
	assert.NotContains(t, out, items[0].ID)
	assert.Contains(t, out, items[1].ID)

	h.mustRun("queue", "clear")
	out = h.mustRun("queue", "list")
	assert.Contains(t, out, "Queue is empty.")
}

func TestLoginSendsBearerToken(t *testing.T) {
	h := newHarness(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"email": "owner@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	out := h.mustRun("login", token)
	assert.Contains(t, out, "Logged in as owner@example.com.")

	h.mustRun("analyze", writePhoto(t))
	assert.Equal(t, []string{"Bearer " + token}, h.be.auth)

	out = h.mustRun("status")
	assert.Contains(t, out, "session: owner@example.com")

	h.mustRun("logout")
	out = h.mustRun("status")
	assert.Contains(t, out, "session: none")

	_, err = h.run("login", "not-a-jwt")
	assert.Error(t, err)
}

func TestExplainAndHistorySync(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("explain", "tail", "wagging")
	assert.Contains(t, out, "About tail wagging (akc.org)")
	assert.Contains(t, out, "It means joy.")

	out = h.mustRun("history", "sync")
	assert.Contains(t, out, "fetched 1, imported 1, skipped 0")
	out = h.mustRun("history", "sync")
	assert.Contains(t, out, "imported 0, skipped 1")

	out = h.mustRun("history", "list")
	assert.Contains(t, out, "Remote one")
}

func TestHistoryDelete(t *testing.T) {
	h := newHarness(t)
	h.mustRun("analyze", writePhoto(t), "--save")

	out := h.mustRun("history", "delete", "1")
	assert.Contains(t, out, "Deleted 1.")
	out = h.mustRun("history", "list")
	assert.Contains(t, out, "No saved interpretations.")

	_, err := h.run("history", "delete", "x")
	assert.Error(t, err)
}

func TestSpeakAndAutoSpeak(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("speak", "good", "boy", "--tone", "calm")
	assert.Contains(t, out, "audio: ")
	assert.Contains(t, out, h.cfg.Speech.OutputDir)

	out = h.mustRun("analyze", writePhoto(t), "--speak")
	assert.Contains(t, out, "audio: ")

	out = h.mustRun("settings", "--auto-speak")
	assert.Contains(t, out, "auto-speak: true")

	entries, err := os.ReadDir(h.cfg.Speech.OutputDir)
	require.NoError(t, err)
	before := len(entries)
	h.mustRun("analyze", writePhoto(t))
	entries, err = os.ReadDir(h.cfg.Speech.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, before+1, len(entries), "auto-speak writes one utterance")
}

func TestAnalyzeShowsBackendError(t *testing.T) {
	h := newHarness(t)
	h.be.reply = `{"status":"error","error":"image too dark"}`

	out, err := h.run("analyze", writePhoto(t), "--save")
	require.Error(t, err)
	assert.Equal(t, "image too dark", err.Error())
	assert.NotContains(t, out, "confidence")

	out = h.mustRun("history", "list")
	assert.Contains(t, out, "No saved interpretations.")
	out = h.mustRun("status")
	assert.Contains(t, out, "scans today: 0")
}

func TestUnknownToneIsRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("analyze", writePhoto(t), "--tone", "grumpy")
	assert.Error(t, err)
	assert.Empty(t, h.be.tones)
}

package image

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogtranslator/internal/platform/config"
	"dogtranslator/internal/platform/errors"
)

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	path := filepath.Join(dir, "dog.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func newTestPreprocessor(t *testing.T) (*Preprocessor, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out")
	cfg := config.DefaultConfig().Image
	cfg.OutputDir = out
	p, err := NewPreprocessor(Options{Image: cfg})
	require.NoError(t, err)
	return p, out
}

func decodeJPEG(t *testing.T, uri string) image.Config {
	t.Helper()
	require.True(t, strings.HasPrefix(uri, FileScheme))
	f, err := os.Open(FilePath(uri))
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	return cfg
}

func TestPreprocess_ResizesToMaxWidth(t *testing.T) {
	p, out := newTestPreprocessor(t)
	src := writePNG(t, t.TempDir(), 1600, 1200)

	uri, err := p.Preprocess(context.Background(), "file://"+src)
	require.NoError(t, err)

	cfg := decodeJPEG(t, uri)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
	assert.Equal(t, out, filepath.Dir(FilePath(uri)))
	assert.NotEqual(t, src, FilePath(uri))
}

func TestPreprocess_DoesNotUpscale(t *testing.T) {
	p, _ := newTestPreprocessor(t)
	src := writePNG(t, t.TempDir(), 320, 240)

	res, err := p.Process(context.Background(), src)
	require.NoError(t, err)

	cfg := decodeJPEG(t, res.URI)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height)
	assert.Equal(t, "png", res.SourceFormat)
	assert.Positive(t, res.Bytes)
}

func TestPreprocess_DoublePrefixedURI(t *testing.T) {
	p, _ := newTestPreprocessor(t)
	src := writePNG(t, t.TempDir(), 10, 10)

	uri, err := p.Preprocess(context.Background(), "file://file://"+src)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(uri, FileScheme))
}

func TestPreprocess_Failures(t *testing.T) {
	p, _ := newTestPreprocessor(t)
	dir := t.TempDir()

	_, err := p.Preprocess(context.Background(), filepath.Join(dir, "missing.jpg"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindImage))

	garbage := filepath.Join(dir, "notes.jpg")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a jpeg"), 0o644))
	_, err = p.Preprocess(context.Background(), garbage)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindImage))

	heic := filepath.Join(dir, "photo.heic")
	require.NoError(t, os.WriteFile(heic, []byte{0, 1, 2, 3}, 0o644))
	_, err = p.Preprocess(context.Background(), heic)
	require.Error(t, err)

	_, err = p.Preprocess(context.Background(), "")
	require.Error(t, err)
}

func TestPreprocess_RejectsOversizedFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	cfg := config.DefaultConfig().Image
	cfg.OutputDir = out
	cfg.Security.MaxFileSize = 64
	p, err := NewPreprocessor(Options{Image: cfg})
	require.NoError(t, err)

	src := writePNG(t, t.TempDir(), 64, 64)
	_, err = p.Preprocess(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum size")
}

func TestPreprocess_CancelledContext(t *testing.T) {
	p, _ := newTestPreprocessor(t)
	src := writePNG(t, t.TempDir(), 10, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Preprocess(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiscard_OnlyRemovesOwnFiles(t *testing.T) {
	p, _ := newTestPreprocessor(t)
	src := writePNG(t, t.TempDir(), 10, 10)

	uri, err := p.Preprocess(context.Background(), src)
	require.NoError(t, err)

	require.NoError(t, p.Discard(src))
	_, err = os.Stat(src)
	assert.NoError(t, err, "source photo must survive")

	require.NoError(t, p.Discard(uri))
	_, err = os.Stat(FilePath(uri))
	assert.True(t, os.IsNotExist(err))
}

func TestNewPreprocessor_RequiresOutputDir(t *testing.T) {
	_, err := NewPreprocessor(Options{})
	assert.Error(t, err)
}

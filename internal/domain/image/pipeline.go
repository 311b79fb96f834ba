package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"dogtranslator/internal/platform/config"
	"dogtranslator/internal/platform/errors"
	"dogtranslator/internal/platform/logging"
)

// Preprocessor bounds photo size before upload: it validates the source,
// scales it down to MaxWidth and re-encodes it as JPEG in OutputDir.
type Preprocessor struct {
	validator *SecurityValidator
	logger    *logging.Logger
	cfg       config.ImageConfig
}

// Options configures the preprocessor.
type Options struct {
	Image  config.ImageConfig
	Logger *logging.Logger
}

// NewPreprocessor constructs a preprocessor; OutputDir is required.
func NewPreprocessor(opts Options) (*Preprocessor, error) {
	if opts.Image.OutputDir == "" {
		return nil, errors.New(errors.KindConfig, "image.new", "image output dir is required")
	}
	if opts.Image.MaxWidth <= 0 {
		opts.Image.MaxWidth = 800
	}
	if opts.Image.Quality <= 0 || opts.Image.Quality > 100 {
		opts.Image.Quality = 70
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Preprocessor{
		validator: NewSecurityValidator(opts.Image.Security, opts.Logger),
		logger:    opts.Logger,
		cfg:       opts.Image,
	}, nil
}

// Preprocess returns the file:// URI of the compressed copy of uri.
func (p *Preprocessor) Preprocess(ctx context.Context, uri string) (string, error) {
	res, err := p.Process(ctx, uri)
	if err != nil {
		return "", err
	}
	return res.URI, nil
}

// Process is Preprocess with details about the produced file.
func (p *Preprocessor) Process(ctx context.Context, uri string) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	path := FilePath(uri)
	if path == "" {
		return nil, errors.New(errors.KindImage, "image.preprocess", "image uri is empty")
	}

	raw, err := p.readSource(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	declared := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	validation := p.validator.ValidateBytes(raw, declared)
	if !validation.IsValid {
		cause := validation.Error
		if cause == nil {
			cause = fmt.Errorf("image validation failed")
		}
		return nil, errors.Wrap(errors.KindImage, "image.validate", "photo rejected", cause)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(errors.KindImage, "image.decode", "cannot decode photo", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := p.resize(src)

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindImage, "image.output_dir", "cannot create output directory", err)
	}
	out, err := os.CreateTemp(p.cfg.OutputDir, "dog-*.jpg")
	if err != nil {
		return nil, errors.Wrap(errors.KindImage, "image.create", "cannot create compressed file", err)
	}
	if err := jpeg.Encode(out, dst, &jpeg.Options{Quality: p.cfg.Quality}); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, errors.Wrap(errors.KindImage, "image.encode", "cannot encode jpeg", err)
	}
	info, statErr := out.Stat()
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return nil, errors.Wrap(errors.KindImage, "image.close", "cannot write compressed file", err)
	}

	abs, err := filepath.Abs(out.Name())
	if err != nil {
		abs = out.Name()
	}
	res := &Result{
		URI:           NormalizeFileURI(abs),
		Path:          abs,
		SourceFormat:  validation.Format,
		SourceWidth:   validation.Width,
		SourceHeight:  validation.Height,
		Width:         dst.Bounds().Dx(),
		Height:        dst.Bounds().Dy(),
		OriginalBytes: int64(len(raw)),
	}
	if statErr == nil {
		res.Bytes = info.Size()
	}

	p.logger.InfoTag("Image", "photo compressed", map[string]any{
		"source_format": res.SourceFormat,
		"source_size":   fmt.Sprintf("%dx%d", res.SourceWidth, res.SourceHeight),
		"output_size":   fmt.Sprintf("%dx%d", res.Width, res.Height),
		"bytes_in":      res.OriginalBytes,
		"bytes_out":     res.Bytes,
		"quality":       p.cfg.Quality,
	})
	return res, nil
}

// Discard removes a file produced by Process. URIs outside OutputDir are left alone.
func (p *Preprocessor) Discard(uri string) error {
	path := FilePath(uri)
	if path == "" {
		return nil
	}
	dir, err := filepath.Abs(p.cfg.OutputDir)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if filepath.Dir(abs) != dir {
		return nil
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (p *Preprocessor) readSource(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindImage, "image.open", "cannot open photo", err)
	}
	defer f.Close()

	maxSize := p.cfg.Security.MaxFileSize
	if maxSize <= 0 {
		maxSize = 25 * 1024 * 1024
	}
	limited := &io.LimitedReader{R: f, N: maxSize + 1}
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.Wrap(errors.KindImage, "image.read", "cannot read photo", err)
	}
	if limited.N <= 0 {
		return nil, errors.New(errors.KindImage, "image.read",
			fmt.Sprintf("photo exceeds maximum size of %d bytes", maxSize))
	}
	return raw, nil
}

// resize scales src to at most MaxWidth wide, keeping the aspect ratio, and
// flattens transparency onto white since JPEG has no alpha channel.
func (p *Preprocessor) resize(src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > p.cfg.MaxWidth {
		h = int(float64(h)*float64(p.cfg.MaxWidth)/float64(w) + 0.5)
		w = p.cfg.MaxWidth
		if h < 1 {
			h = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

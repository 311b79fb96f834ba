package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"dogtranslator/internal/platform/config"
	"dogtranslator/internal/platform/logging"
)

// SecurityValidator checks photos before they are decoded in full.
type SecurityValidator struct {
	config config.SecurityConfig
	logger *logging.Logger
}

// NewSecurityValidator constructs a new validator instance.
func NewSecurityValidator(cfg config.SecurityConfig, logger *logging.Logger) *SecurityValidator {
	return &SecurityValidator{
		config: cfg,
		logger: logger,
	}
}

var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"jpg":  {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46},
}

// ValidateBytes validates an encoded photo. declaredFormat is usually the
// file extension and may be empty.
func (v *SecurityValidator) ValidateBytes(raw []byte, declaredFormat string) ValidationResult {
	result := ValidationResult{IsValid: false}
	declaredFormat = strings.ToLower(strings.TrimPrefix(declaredFormat, "."))

	if len(raw) == 0 {
		result.Error = fmt.Errorf("empty image payload")
		return result
	}

	if v.config.MaxFileSize > 0 && int64(len(raw)) > v.config.MaxFileSize {
		result.Error = fmt.Errorf(
			"file size exceeds limit: %d bytes (max %d bytes)",
			len(raw),
			v.config.MaxFileSize,
		)
		result.SecurityRisk = "file too large"
		v.logger.WarnTag("Image", "oversized photo: size=%d max_size=%d format=%s",
			len(raw), v.config.MaxFileSize, declaredFormat)
		return result
	}

	if declaredFormat != "" && !v.isFormatAllowed(declaredFormat) {
		result.Error = fmt.Errorf("unsupported format: %s", declaredFormat)
		result.SecurityRisk = "unapproved format"
		return result
	}

	result = v.validateDecoding(raw, declaredFormat)
	if !result.IsValid {
		if declaredFormat != "" && !v.validateFileSignature(raw, declaredFormat) {
			v.logger.WarnTag("Image", "file signature mismatch: declared_format=%s actual_header=%x",
				declaredFormat, raw[:min(len(raw), 16)])
		}
		return result
	}
	return result
}

func (v *SecurityValidator) isFormatAllowed(format string) bool {
	if len(v.config.AllowedFormats) == 0 || format == "" {
		return true
	}
	for _, allowed := range v.config.AllowedFormats {
		if strings.EqualFold(allowed, format) {
			return true
		}
	}
	return false
}

func (v *SecurityValidator) validateFileSignature(raw []byte, format string) bool {
	signature, ok := imageSignatures[format]
	if !ok {
		return true
	}
	return bytes.HasPrefix(raw, signature)
}

func (v *SecurityValidator) scanForMaliciousContent(raw []byte) bool {
	suspicious := [][]byte{
		{0x4D, 0x5A},             // PE executable
		{0x25, 0x50, 0x44, 0x46}, // PDF
		{0x50, 0x4B, 0x03, 0x04}, // zip
		{0x1F, 0x8B, 0x08},       // gzip
	}
	for _, signature := range suspicious {
		if bytes.HasPrefix(raw, signature) {
			v.logger.WarnTag("Image", "suspicious leading signature: %x", signature)
			return true
		}
	}

	lower := bytes.ToLower(raw)
	if bytes.Contains(lower, []byte("<svg")) {
		for _, token := range []string{"<script", "javascript:", "onload=", "onerror=", "<iframe"} {
			if bytes.Contains(lower, []byte(token)) {
				v.logger.WarnTag("Image", "suspicious SVG content: token=%s", token)
				return true
			}
		}
	}
	return false
}

func (v *SecurityValidator) validateDecoding(raw []byte, format string) ValidationResult {
	result := ValidationResult{Format: format}

	cfg, actualFormat, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		result.Error = fmt.Errorf("decode image config: %w", err)
		result.SecurityRisk = "corrupted image data"
		return result
	}
	if actualFormat != "" {
		result.Format = actualFormat
	}

	if (v.config.MaxWidth > 0 && cfg.Width > v.config.MaxWidth) ||
		(v.config.MaxHeight > 0 && cfg.Height > v.config.MaxHeight) {
		result.Error = fmt.Errorf("dimensions exceed limit: %dx%d (max %dx%d)",
			cfg.Width, cfg.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "dimensions too large"
		return result
	}

	totalPixels := int64(cfg.Width) * int64(cfg.Height)
	if v.config.MaxPixels > 0 && totalPixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("pixel count exceeds limit: %d (max %d)", totalPixels, v.config.MaxPixels)
		result.SecurityRisk = "pixel count too high"
		return result
	}

	if v.config.EnableDeepScan && v.scanForMaliciousContent(raw) {
		result.Error = fmt.Errorf("potential malicious content detected")
		result.SecurityRisk = "suspicious content"
		return result
	}

	result.IsValid = true
	result.Width = cfg.Width
	result.Height = cfg.Height
	result.FileSize = int64(len(raw))

	v.logger.DebugTag("Image", "validation passed: format=%s width=%d height=%d size=%d",
		result.Format, result.Width, result.Height, result.FileSize)
	return result
}

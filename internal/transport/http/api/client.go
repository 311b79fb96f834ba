package api

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/analysis/normalize"
	"dogtranslator/internal/domain/image"
	apperrors "dogtranslator/internal/platform/errors"
	"dogtranslator/internal/platform/logging"
)

const (
	InterpretPath = "/api/v1/interpret"
	ExplainPath   = "/api/v1/explain"
	HistoryPath   = "/api/v1/history"

	HeaderAttestation = "X-Firebase-AppCheck"
	HeaderRequestID   = "X-Request-ID"

	DefaultTimeout = 60 * time.Second

	uploadField       = "image"
	uploadFileName    = "dog.jpg"
	uploadContentType = "image/jpeg"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Bearer supplies the identity token; an empty token omits the header.
	Bearer TokenSource
	// Attestation supplies the app attestation token; failures are logged
	// and the header is omitted.
	Attestation TokenSource
	Logger      *logging.Logger
}

// Client talks to the interpretation backend.
type Client struct {
	http        *resty.Client
	baseURL     string
	bearer      TokenSource
	attestation TokenSource
	normalizer  *normalize.Normalizer
	logger      *logging.Logger
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:        httpClient,
		baseURL:     opts.BaseURL,
		bearer:      opts.Bearer,
		attestation: opts.Attestation,
		normalizer:  normalize.New(opts.Logger),
		logger:      opts.Logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// requestInfo describes the headers attached to one request.
type requestInfo struct {
	id             string
	hasAuth        bool
	hasAttestation bool
}

func (c *Client) newRequest(ctx context.Context) (*resty.Request, requestInfo) {
	info := requestInfo{id: uuid.NewString()}
	req := c.http.R().SetContext(ctx).SetHeader(HeaderRequestID, info.id)

	if c.bearer != nil {
		token, err := c.bearer.Token(ctx)
		switch {
		case err != nil:
			c.logger.WarnTag("Upload", "identity token unavailable: %v", err)
		case token != "":
			req.SetAuthToken(token)
			info.hasAuth = true
		}
	}
	if c.attestation != nil {
		token, err := c.attestation.Token(ctx)
		switch {
		case err != nil:
			c.logger.WarnTag("Upload", "attestation token unavailable: %v", err)
		case token != "":
			req.SetHeader(HeaderAttestation, token)
			info.hasAttestation = true
		}
	}
	return req, info
}

// Upload sends one photo for interpretation and normalizes the response.
func (c *Client) Upload(ctx context.Context, in UploadRequest) (model.AnalysisResult, error) {
	uri := image.NormalizeFileURI(in.ImageURI)
	if uri == "" {
		return model.AnalysisResult{}, apperrors.New(apperrors.KindImage, "api.upload", "image uri is empty")
	}
	data, err := os.ReadFile(image.FilePath(uri))
	if err != nil {
		return model.AnalysisResult{}, apperrors.Wrap(apperrors.KindImage, "api.upload", "cannot read photo", err)
	}
	tone := in.Tone
	if !tone.Valid() {
		tone = model.DefaultTone
	}

	req, info := c.newRequest(ctx)
	req.SetMultipartField(uploadField, uploadFileName, uploadContentType, bytes.NewReader(data)).
		SetMultipartFormData(map[string]string{
			"tone": string(tone),
			"save": strconv.FormatBool(in.Save),
		})

	url := c.baseURL + InterpretPath
	c.logger.InfoTag("Upload", "request", map[string]any{
		"method":          http.MethodPost,
		"url":             url,
		"request_id":      info.id,
		"has_auth":        info.hasAuth,
		"has_attestation": info.hasAttestation,
		"content_type":    "multipart/form-data",
		"file_uri":        uri,
		"file_name":       uploadFileName,
		"file_type":       uploadContentType,
		"file_bytes":      len(data),
		"tone":            string(tone),
		"save":            in.Save,
	})

	start := time.Now()
	resp, err := req.Post(InterpretPath)
	body, err := c.check(http.MethodPost, url, info, resp, err, start)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	return c.normalizer.Normalize(body), nil
}

// check turns a resty outcome into the response body or an APIError.
func (c *Client) check(method, url string, info requestInfo, resp *resty.Response, err error, start time.Time) ([]byte, error) {
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		apiErr := apperrors.NewNetworkError(method, url, err)
		c.logger.ErrorTag("Upload", "no response", map[string]any{
			"method":     method,
			"url":        url,
			"request_id": info.id,
			"elapsed_ms": elapsed,
			"error":      err.Error(),
		})
		return nil, apiErr
	}

	status := resp.StatusCode()
	if status >= http.StatusBadRequest {
		apiErr := apperrors.NewStatusError(method, url, status, resp.Body())
		fields := map[string]any{
			"method":     method,
			"url":        url,
			"status":     status,
			"request_id": info.id,
			"elapsed_ms": elapsed,
			"body":       truncate(resp.Body(), 512),
		}
		if trace := resp.Header().Get("X-Cloud-Trace-Context"); trace != "" {
			fields["trace"] = trace
		}
		switch status {
		case http.StatusRequestEntityTooLarge:
			fields["hint"] = "payload too large"
		case http.StatusBadGateway:
			fields["hint"] = "upstream unavailable or timed out"
		case http.StatusUnprocessableEntity:
			fields["hint"] = "validation failed: check the image, tone and save fields"
		case http.StatusUnauthorized:
			fields["hint"] = "session rejected"
		}
		c.logger.ErrorTag("Upload", "error response", fields)
		return nil, apiErr
	}

	c.logger.InfoTag("Upload", "response", map[string]any{
		"method":     method,
		"url":        url,
		"status":     status,
		"request_id": info.id,
		"elapsed_ms": elapsed,
		"bytes":      len(resp.Body()),
	})
	return resp.Body(), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

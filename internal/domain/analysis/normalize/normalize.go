// Package normalize turns whatever the interpretation backend returned into
// a model.AnalysisResult. The backend echoes model output verbatim, so bodies
// may be fenced, double encoded or plain prose; normalization never fails.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"dogtranslator/internal/domain/analysis/model"
)

// SourceRawText marks results recovered from an unparseable body.
const SourceRawText = "raw_text"

// DefaultRawConfidence is reported when a raw-text body carries no confidence.
const DefaultRawConfidence = 0.5

const maxDepth = 8

var (
	explanationPattern = regexp.MustCompile(`"explanation"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	confidencePattern  = regexp.MustCompile(`(?i)"?confidence"?\s*[:=]\s*"?([0-9]*\.?[0-9]+)\s*(%?)`)
)

// Normalizer wraps the package functions with diagnostics.
type Normalizer struct {
	logger model.Logger
}

func New(logger model.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize converts a raw response body.
func (n *Normalizer) Normalize(raw []byte) model.AnalysisResult {
	res, how := normalize(string(raw))
	if n != nil && n.logger != nil {
		n.logger.Debug("[Normalize] body normalized", map[string]any{
			"shape":      how,
			"status":     res.Status,
			"confidence": res.Confidence,
			"bytes":      len(raw),
		})
		if how == shapeRaw {
			n.logger.Warn("[Normalize] body was not JSON, using raw text", map[string]any{"bytes": len(raw)})
		}
	}
	return res
}

// Normalize converts a raw response body without logging.
func Normalize(raw []byte) model.AnalysisResult {
	res, _ := normalize(string(raw))
	return res
}

// NormalizeString is Normalize for text bodies.
func NormalizeString(s string) model.AnalysisResult {
	res, _ := normalize(s)
	return res
}

const (
	shapeEmpty  = "empty"
	shapeObject = "object"
	shapeRaw    = "raw_text"
)

func normalize(text string) (model.AnalysisResult, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.AnalysisResult{
			Status: model.StatusError,
			Error:  "empty response body",
		}, shapeEmpty
	}

	obj, plain, ok := parseObject(text)
	if !ok {
		return fromRawText(plain), shapeRaw
	}
	if !hasResultKeys(obj) {
		return fromRawText(plain), shapeRaw
	}
	return finish(fromMap(obj)), shapeObject
}

// hasResultKeys reports whether obj looks like a result rather than an
// unrelated wrapper such as {"result":{...}}.
func hasResultKeys(obj map[string]any) bool {
	for _, k := range []string{"explanation", "status", "error", "detail"} {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// StripCodeFences removes a surrounding markdown or triple-quote fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	for _, fence := range []string{"```", "'''", `"""`} {
		if !strings.HasPrefix(s, fence) {
			continue
		}
		s = strings.TrimPrefix(s, fence)
		// language tag on the opening line, e.g. ```json
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && isLangTag(s[:nl]) {
			s = s[nl+1:]
		} else if isLangTag(s) {
			s = ""
		} else {
			s = strings.TrimPrefix(s, "json")
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, fence)
		return strings.TrimSpace(s)
	}
	return s
}

func isLangTag(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) > 16 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// parseObject decodes text into a JSON object, peeling fences, string
// encodings and surrounding prose until an object appears. When no object is
// found it returns the innermost decoded string instead.
func parseObject(text string) (map[string]any, string, bool) {
	plain := text
	for depth := 0; depth < maxDepth; depth++ {
		s := StripCodeFences(text)
		var v any
		if err := sonic.UnmarshalString(s, &v); err == nil {
			switch t := v.(type) {
			case map[string]any:
				return t, plain, true
			case string:
				text = strings.TrimSpace(t)
				plain = text
				continue
			default:
				return nil, plain, false
			}
		}
		inner := extractObject(s)
		if inner == "" || inner == s {
			return nil, plain, false
		}
		text = inner
	}
	return nil, plain, false
}

func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// fields is an AnalysisResult plus knowledge of which keys were present.
type fields struct {
	res           model.AnalysisResult
	hasConfidence bool
	hasStatus     bool
}

func fromMap(m map[string]any) fields {
	var f fields
	if v, ok := m["status"]; ok {
		f.res.Status = asString(v)
		f.hasStatus = true
	}
	if v, ok := m["confidence"]; ok {
		if c, ok := parseConfidence(v); ok {
			f.res.Confidence = c
			f.hasConfidence = true
		}
	}
	f.res.Breed = asString(m["breed"])
	f.res.Source = asString(m["source"])
	f.res.ShareID = asString(m["share_id"])
	if f.res.ShareID == "" {
		f.res.ShareID = asString(m["shareId"])
	}
	f.res.Error = asString(m["error"])
	if f.res.Error == "" {
		f.res.Error = asString(m["detail"])
	}

	switch e := m["explanation"].(type) {
	case nil:
	case string:
		f.res.Explanation = e
	case map[string]any:
		inner := fromMap(e)
		f.res.Explanation = inner.res.Explanation
		f.merge(inner)
	default:
		f.res.Explanation = asString(e)
	}
	return f
}

// merge fills fields that are still empty from inner.
func (f *fields) merge(inner fields) {
	if !f.hasConfidence && inner.hasConfidence {
		f.res.Confidence = inner.res.Confidence
		f.hasConfidence = true
	}
	if !f.hasStatus && inner.hasStatus {
		f.res.Status = inner.res.Status
		f.hasStatus = true
	}
	if f.res.Breed == "" {
		f.res.Breed = inner.res.Breed
	}
	if f.res.Source == "" {
		f.res.Source = inner.res.Source
	}
	if f.res.ShareID == "" {
		f.res.ShareID = inner.res.ShareID
	}
	if f.res.Error == "" {
		f.res.Error = inner.res.Error
	}
}

func finish(f fields) model.AnalysisResult {
	unwrapExplanation(&f)
	return NormalizeResult(f.res)
}

// unwrapExplanation resolves explanations that carry another serialized
// result. The embedded "explanation" pair is matched first; a full parse of
// the value only runs when the pattern does not match.
func unwrapExplanation(f *fields) {
	for depth := 0; depth < maxDepth; depth++ {
		stripped := StripCodeFences(f.res.Explanation)

		if inner, ok := matchExplanation(stripped); ok {
			if obj, _, ok := parseObject(stripped); ok {
				f.merge(fromMap(obj))
			}
			f.res.Explanation = inner
			continue
		}

		trimmed := strings.TrimSpace(stripped)
		if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, `"`) {
			return
		}
		var v any
		if err := sonic.UnmarshalString(trimmed, &v); err != nil {
			return
		}
		switch t := v.(type) {
		case string:
			// a quoted sentence stays quoted; only serialized results unwrap
			if !looksSerialized(t) {
				return
			}
			f.res.Explanation = t
		case map[string]any:
			inner := fromMap(t)
			if inner.res.Explanation == "" {
				return
			}
			f.merge(inner)
			f.res.Explanation = inner.res.Explanation
		default:
			return
		}
	}
}

func looksSerialized(s string) bool {
	s = strings.TrimSpace(StripCodeFences(s))
	if _, ok := matchExplanation(s); ok {
		return true
	}
	obj, _, ok := parseObject(s)
	return ok && fromMap(obj).res.Explanation != ""
}

func matchExplanation(s string) (string, bool) {
	m := explanationPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	var out string
	if err := sonic.UnmarshalString(`"`+m[1]+`"`, &out); err != nil {
		out = m[1]
	}
	return out, true
}

// NormalizeResult clamps confidence and fills the status of an already decoded
// value. Applying it to its own output changes nothing.
func NormalizeResult(r model.AnalysisResult) model.AnalysisResult {
	f := fields{res: r, hasConfidence: true, hasStatus: r.Status != ""}
	if _, ok := matchExplanation(StripCodeFences(r.Explanation)); ok {
		unwrapExplanation(&f)
	}
	r = f.res

	switch s := strings.ToLower(strings.TrimSpace(r.Status)); s {
	case model.StatusOK, model.StatusError:
		r.Status = s
	default:
		if r.Error != "" {
			r.Status = model.StatusError
		} else {
			r.Status = model.StatusOK
		}
	}
	r.Confidence = clampConfidence(r.Confidence)
	return r
}

func fromRawText(text string) model.AnalysisResult {
	res := model.AnalysisResult{
		Status:      model.StatusOK,
		Explanation: text,
		Confidence:  DefaultRawConfidence,
		Source:      SourceRawText,
	}
	if inner, ok := matchExplanation(text); ok {
		res.Explanation = inner
	} else if unescaped := strings.ReplaceAll(text, `\"`, `"`); unescaped != text {
		if inner, ok := matchExplanation(unescaped); ok {
			res.Explanation = inner
		}
	}
	if m := confidencePattern.FindStringSubmatch(text); m != nil {
		if c, err := strconv.ParseFloat(m[1], 64); err == nil {
			if m[2] == "%" {
				c = fromPercent(c)
			}
			res.Confidence = clampConfidence(c)
		}
	}
	return res
}

func parseConfidence(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		pct := strings.HasSuffix(s, "%")
		s = strings.TrimSuffix(s, "%")
		c, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		if pct {
			c = fromPercent(c)
		}
		return c, true
	default:
		return 0, false
	}
}

// clampConfidence maps bare percentages (2 and above) onto [0,1] and clamps
// the rest. Values just over 1 are overshoot, not percentages.
func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c <= 0:
		return 0
	case c <= 1:
		return c
	case c < 2:
		return 1
	case c <= 100:
		return c / 100
	default:
		return 1
	}
}

// fromPercent converts an explicit percentage; the result never needs
// further scaling by clampConfidence.
func fromPercent(c float64) float64 {
	return math.Min(c/100, 1)
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := sonic.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

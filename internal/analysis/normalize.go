package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const defaultProtectionScore = 75

var defaultRecommendations = []string{
	"Have a lawyer or an experienced creator manager review the full contract before signing.",
	"Confirm payment amount, due dates and usage rights in writing with the brand.",
}

var errNoObject = errors.New("no JSON object found")

// ParseError means the model reply could not be turned into a JSON object.
// There is no fallback analysis; callers should ask the user to retry.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("analysis response is not valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag. Text without a fence is returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// drop the language tag line
		if tag := strings.TrimSpace(body[:nl]); !strings.ContainsAny(tag, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ExtractObject returns the first balanced {...} span in s. Braces inside
// JSON strings are ignored.
func ExtractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Parse turns a raw model reply into a generic JSON object.
func Parse(raw string) (map[string]any, error) {
	obj, ok := ExtractObject(StripFences(raw))
	if !ok {
		return nil, &ParseError{Raw: raw, Err: errNoObject}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	return m, nil
}

// Normalize builds a Result from an untrusted JSON object. Every field is
// validated on its own and replaced by a default when unusable. Feeding the
// JSON form of a normalized Result back in yields the same Result.
func Normalize(m map[string]any) Result {
	return Result{
		ProtectionScore: normalizeScore(m["protectionScore"]),
		OverallRisk:     normalizeRisk(m["overallRisk"]),
		Issues:          normalizeIssues(m["issues"]),
		Verified:        normalizeVerified(m["verified"]),
		KeyTerms:        normalizeKeyTerms(m["keyTerms"]),
		Recommendations: normalizeRecommendations(m["recommendations"]),
	}
}

func normalizeScore(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return defaultProtectionScore
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%")), 64)
		if err != nil {
			return defaultProtectionScore
		}
		f = n
	default:
		return defaultProtectionScore
	}
	if math.IsNaN(f) {
		return defaultProtectionScore
	}
	return clamp(int(math.Round(math.Max(math.Min(f, 1000), -1000))), 0, 100)
}

func normalizeRisk(v any) Risk {
	s, _ := v.(string)
	switch r := Risk(strings.ToLower(strings.TrimSpace(s))); r {
	case RiskLow, RiskMedium, RiskHigh:
		return r
	default:
		return RiskMedium
	}
}

func normalizeSeverity(v any) Severity {
	s, _ := v.(string)
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityHigh, SeverityMedium, SeverityLow, SeverityWarning:
		return sev
	default:
		return SeverityMedium
	}
}

func normalizeIssues(v any) []Issue {
	out := []Issue{}
	items, _ := v.([]any)
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title, desc := str(obj["title"]), str(obj["description"])
		if title == "" && desc == "" {
			continue
		}
		issue := Issue{
			Severity:       normalizeSeverity(obj["severity"]),
			Category:       orDefault(str(obj["category"]), "general"),
			Title:          orDefault(title, "Contract issue"),
			Description:    orDefault(desc, title),
			Clause:         str(obj["clause"]),
			Recommendation: orDefault(str(obj["recommendation"]), "Discuss this clause with the brand before signing."),
		}
		out = append(out, issue)
	}
	return out
}

func normalizeVerified(v any) []VerifiedClause {
	out := []VerifiedClause{}
	items, _ := v.([]any)
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title, desc := str(obj["title"]), str(obj["description"])
		if title == "" && desc == "" {
			continue
		}
		out = append(out, VerifiedClause{
			Category:    orDefault(str(obj["category"]), "general"),
			Title:       orDefault(title, "Verified clause"),
			Description: orDefault(desc, title),
			Clause:      str(obj["clause"]),
		})
	}
	return out
}

func normalizeKeyTerms(v any) KeyTerms {
	obj, _ := v.(map[string]any)
	return KeyTerms{
		DealValue:       scalar(obj["dealValue"]),
		Duration:        scalar(obj["duration"]),
		Deliverables:    scalar(obj["deliverables"]),
		PaymentSchedule: scalar(obj["paymentSchedule"]),
		Exclusivity:     scalar(obj["exclusivity"]),
		Payment:         scalar(obj["payment"]),
		BrandName:       scalar(obj["brandName"]),
	}
}

func normalizeRecommendations(v any) []string {
	var out []string
	items, _ := v.([]any)
	for _, item := range items {
		if s := str(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultRecommendations...)
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// scalar renders strings and numbers; anything else counts as absent.
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "yes"
		}
		return "no"
	default:
		return ""
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pratyushraj/noticebazaar-sub008/internal/document"
	"github.com/pratyushraj/noticebazaar-sub008/internal/llm"
)

type fixedGateway struct {
	reply  string
	err    error
	prompt string
}

func (f *fixedGateway) Name() string  { return "fixed" }
func (f *fixedGateway) Model() string { return "fixed-1" }

func (f *fixedGateway) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func contract(t *testing.T) document.Text {
	t.Helper()
	text, err := document.NewText("Influencer agreement between Acme and Priya for two Instagram reels, fee INR 50,000.", document.FormatTXT)
	if err != nil {
		t.Fatalf("new text: %v", err)
	}
	return text
}

func TestScenarioOutOfRangeFields(t *testing.T) {
	m, err := Parse(`{"protectionScore": 140, "overallRisk": "catastrophic", "issues": "not-an-array"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := Normalize(m)
	if res.ProtectionScore != 100 {
		t.Fatalf("expected clamped score 100, got %d", res.ProtectionScore)
	}
	if res.OverallRisk != RiskMedium {
		t.Fatalf("expected medium risk, got %s", res.OverallRisk)
	}
	if res.Issues == nil || len(res.Issues) != 0 {
		t.Fatalf("expected empty issues, got %#v", res.Issues)
	}
	if len(res.Recommendations) != 2 {
		t.Fatalf("expected default recommendations, got %v", res.Recommendations)
	}
}

func TestNormalizeBounds(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"protectionScore": -20}`,
		`{"protectionScore": "88"}`,
		`{"protectionScore": "eighty"}`,
		`{"protectionScore": null, "overallRisk": 3}`,
		`{"protectionScore": [1,2], "overallRisk": "HIGH "}`,
		`{"protectionScore": 1e308}`,
		`{"protectionScore": 49.6, "overallRisk": "low"}`,
	}
	want := []struct {
		score int
		risk  Risk
	}{
		{75, RiskMedium},
		{0, RiskMedium},
		{88, RiskMedium},
		{75, RiskMedium},
		{75, RiskMedium},
		{75, RiskHigh},
		{100, RiskMedium},
		{50, RiskLow},
	}
	for i, in := range inputs {
		m, err := Parse(in)
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		res := Normalize(m)
		if res.ProtectionScore != want[i].score || res.OverallRisk != want[i].risk {
			t.Fatalf("%s: got %d/%s, want %d/%s", in, res.ProtectionScore, res.OverallRisk, want[i].score, want[i].risk)
		}
	}
}

func TestNormalizeItems(t *testing.T) {
	m, err := Parse(`{
		"issues": [
			{"severity": "critical", "title": "Unlimited usage rights", "description": "Brand may reuse content forever."},
			{"severity": "low", "description": "No late fee."},
			{"severity": "high"},
			"stray string",
			{"title": "  "}
		],
		"verified": [{"title": "Payment within 30 days"}, {"category": "ip"}],
		"keyTerms": {"dealValue": 50000, "duration": " 3 months ", "exclusivity": true, "brandName": {"x": 1}},
		"recommendations": ["Ask for a kill fee", "", 7]
	}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := Normalize(m)
	if len(res.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(res.Issues))
	}
	if res.Issues[0].Severity != SeverityMedium || res.Issues[0].Category != "general" || res.Issues[0].Recommendation == "" {
		t.Fatalf("expected defaulted first issue, got %+v", res.Issues[0])
	}
	if res.Issues[1].Title != "Contract issue" || res.Issues[1].Severity != SeverityLow {
		t.Fatalf("unexpected second issue %+v", res.Issues[1])
	}
	if len(res.Verified) != 1 || res.Verified[0].Description != "Payment within 30 days" {
		t.Fatalf("unexpected verified %+v", res.Verified)
	}
	kt := res.KeyTerms
	if kt.DealValue != "50000" || kt.Duration != "3 months" || kt.Exclusivity != "yes" || kt.BrandName != "" {
		t.Fatalf("unexpected key terms %+v", kt)
	}
	if !reflect.DeepEqual(res.Recommendations, []string{"Ask for a kill fee"}) {
		t.Fatalf("unexpected recommendations %v", res.Recommendations)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"protectionScore": 140, "overallRisk": "catastrophic", "issues": "not-an-array"}`,
		`{"protectionScore": "61.4", "issues": [{"description": "No payment date"}, {"title": "Perpetual license", "severity": "HIGH", "clause": "in perpetuity"}],
		  "verified": [{"description": "Jurisdiction is Mumbai"}], "keyTerms": {"payment": 1.5}}`,
	}
	for _, in := range inputs {
		m, err := Parse(in)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		first := Normalize(m)
		data, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		m2, err := Parse(string(data))
		if err != nil {
			t.Fatalf("reparse: %v", err)
		}
		second := Normalize(m2)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("normalize not idempotent for %s:\nfirst  %+v\nsecond %+v", in, first, second)
		}
	}
}

func TestParseHandlesFencesAndProse(t *testing.T) {
	tests := []string{
		"```json\n{\"protectionScore\": 60}\n```",
		"```\n{\"protectionScore\": 60}\n```",
		"Sure! Here is the analysis:\n{\"protectionScore\": 60, \"note\": \"braces } in { strings\"}\nHope this helps.",
		"Result: ```json {\"protectionScore\": 60} ``` end",
	}
	for _, in := range tests {
		m, err := Parse(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if Normalize(m).ProtectionScore != 60 {
			t.Fatalf("unexpected score for %q", in)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "I cannot analyze this document.", `{"protectionScore": 60`, `{"a": tru}`} {
		_, err := Parse(in)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ParseError for %q, got %v", in, err)
		}
	}
}

func TestExtractObjectEscapes(t *testing.T) {
	obj, ok := ExtractObject(`prefix {"a": "quote \" and } brace", "b": {"c": 1}} suffix {}`)
	if !ok {
		t.Fatalf("expected object")
	}
	if obj != `{"a": "quote \" and } brace", "b": {"c": 1}}` {
		t.Fatalf("unexpected span %s", obj)
	}
}

func TestNegotiationPower(t *testing.T) {
	base := Result{ProtectionScore: 70}
	if got := NegotiationPower(base); got != 70 {
		t.Fatalf("expected 70, got %d", got)
	}

	r := Result{
		ProtectionScore: 70,
		Issues: []Issue{
			{Severity: SeverityHigh}, {Severity: SeverityMedium}, {Severity: SeverityLow}, {Severity: SeverityWarning},
		},
		Verified: make([]VerifiedClause, 7),
		KeyTerms: KeyTerms{DealValue: "50000", PaymentSchedule: "Net 30", Duration: "3 months", Deliverables: "2 reels", Exclusivity: "Non-exclusive"},
	}
	// 70 - 21 + 10 + 5 + 5 + 3 + 3 + 4
	if got := NegotiationPower(r); got != 79 {
		t.Fatalf("expected 79, got %d", got)
	}

	r.KeyTerms.Exclusivity = "Exclusive for 6 months in beauty category"
	if got := NegotiationPower(r); got != 70 {
		t.Fatalf("expected 70 with exclusivity, got %d", got)
	}

	low := Result{ProtectionScore: 5, Issues: []Issue{{Severity: SeverityHigh}, {Severity: SeverityHigh}}}
	if got := NegotiationPower(low); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
	high := Result{ProtectionScore: 100, KeyTerms: KeyTerms{DealValue: "1", PaymentSchedule: "x"}}
	if got := NegotiationPower(high); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
}

func TestEngineAnalyze(t *testing.T) {
	gw := &fixedGateway{reply: "```json\n" + `{"protectionScore": 64, "overallRisk": "high",
		"issues": [{"severity": "high", "category": "usage", "title": "Perpetual usage", "description": "Content can be reused forever.", "recommendation": "Limit to 6 months."}],
		"verified": [], "keyTerms": {"dealValue": "INR 50,000"}, "recommendations": ["Negotiate usage period"]}` + "\n```"}
	engine, err := NewEngine(gw, Options{Policy: llm.Policy{Timeout: time.Second}})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res, err := engine.Analyze(context.Background(), contract(t))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.ProtectionScore != 64 || res.OverallRisk != RiskHigh || len(res.Issues) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	// 64 - 12 + 5
	if res.NegotiationPowerScore != 57 {
		t.Fatalf("expected negotiation power 57, got %d", res.NegotiationPowerScore)
	}
	if !strings.Contains(gw.prompt, "Instagram reels") {
		t.Fatalf("expected contract text in prompt")
	}
}

func TestEngineCustomScorer(t *testing.T) {
	gw := &fixedGateway{reply: `{"protectionScore": 40}`}
	engine, err := NewEngine(gw, Options{Scorer: func(r Result) int { return r.ProtectionScore / 2 }})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res, err := engine.Analyze(context.Background(), contract(t))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.NegotiationPowerScore != 20 {
		t.Fatalf("expected custom score 20, got %d", res.NegotiationPowerScore)
	}
}

func TestEnginePropagatesErrors(t *testing.T) {
	engine, err := NewEngine(&fixedGateway{reply: "Sorry, I can't help with that."}, Options{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	_, err = engine.Analyze(context.Background(), contract(t))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}

	engine, _ = NewEngine(&fixedGateway{err: &llm.ProviderError{Provider: "fixed", Kind: llm.ErrAuth}}, Options{})
	_, err = engine.Analyze(context.Background(), contract(t))
	var perr *llm.ProviderError
	if !errors.As(err, &perr) || perr.Kind != llm.ErrAuth {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestDiagnoseReportsDeviations(t *testing.T) {
	schema, err := compileSchema()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	m, _ := Parse(`{"protectionScore": 140, "overallRisk": "catastrophic", "issues": "not-an-array"}`)
	if diags := diagnose(schema, m); len(diags) == 0 {
		t.Fatalf("expected schema deviations")
	}
	m, _ = Parse(`{"protectionScore": 70, "overallRisk": "low", "issues": [], "verified": [], "keyTerms": {}, "recommendations": ["ok"]}`)
	if diags := diagnose(schema, m); len(diags) != 0 {
		t.Fatalf("expected no deviations, got %v", diags)
	}
}

func TestPromptTruncation(t *testing.T) {
	p := buildPrompt(strings.Repeat("é", 50), 10)
	if strings.Count(p, "é") != 10 {
		t.Fatalf("expected 10 runes of contract text, got %d", strings.Count(p, "é"))
	}
}

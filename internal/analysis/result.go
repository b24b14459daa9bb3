package analysis

type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

type Severity string

const (
	SeverityHigh    Severity = "high"
	SeverityMedium  Severity = "medium"
	SeverityLow     Severity = "low"
	SeverityWarning Severity = "warning"
)

// Result is the normalized risk analysis of one contract. Every field holds
// a valid value; NegotiationPowerScore is attached after normalization.
type Result struct {
	ProtectionScore       int              `json:"protectionScore"`
	NegotiationPowerScore int              `json:"negotiationPowerScore"`
	OverallRisk           Risk             `json:"overallRisk"`
	Issues                []Issue          `json:"issues"`
	Verified              []VerifiedClause `json:"verified"`
	KeyTerms              KeyTerms         `json:"keyTerms"`
	Recommendations       []string         `json:"recommendations"`
}

type Issue struct {
	Severity       Severity `json:"severity"`
	Category       string   `json:"category"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Clause         string   `json:"clause,omitempty"`
	Recommendation string   `json:"recommendation"`
}

type VerifiedClause struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Clause      string `json:"clause,omitempty"`
}

type KeyTerms struct {
	DealValue       string `json:"dealValue,omitempty"`
	Duration        string `json:"duration,omitempty"`
	Deliverables    string `json:"deliverables,omitempty"`
	PaymentSchedule string `json:"paymentSchedule,omitempty"`
	Exclusivity     string `json:"exclusivity,omitempty"`
	Payment         string `json:"payment,omitempty"`
	BrandName       string `json:"brandName,omitempty"`
}

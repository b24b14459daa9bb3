package classify

import "regexp"

const (
	SignalPlatform     = "platform"
	SignalCreator      = "creator"
	SignalBrand        = "brand"
	SignalPayment      = "payment"
	SignalDeliverables = "deliverables"
)

type signalGroup struct {
	name string
	re   *regexp.Regexp
}

// Each group counts at most once no matter how many of its terms appear.
var signalGroups = []signalGroup{
	{SignalPlatform, regexp.MustCompile(`(?i)\b(instagram|insta|youtube|tiktok|snapchat|facebook|twitter|linkedin|twitch|sharechat|moj|josh app|threads|podcast|social media)\b`)},
	{SignalCreator, regexp.MustCompile(`(?i)\b(influencers?|creators?|content creators?|youtubers?|bloggers?|vloggers?|talent|artist)\b`)},
	{SignalBrand, regexp.MustCompile(`(?i)\b(brands?|sponsors?|sponsored|sponsorship|campaigns?|advertisers?|endorsements?|collab(oration)?s?)\b`)},
	{SignalPayment, regexp.MustCompile(`(?i)(\b(payments?|paid|pay|compensation|fees?|remuneration|honorarium|consideration|INR|rs\.?)\b|₹)`)},
	{SignalDeliverables, regexp.MustCompile(`(?i)\b(deliverables?|posts?|reels?|stor(y|ies)|videos?|shout-?outs?|integrations?|unboxing|live ?streams?)\b`)},
}

// minSignals is the number of distinct groups a document must hit.
const minSignals = 2

type Signals struct {
	Passed  bool     `json:"passed"`
	Found   []string `json:"found"`
	Missing []string `json:"missing"`
}

func ScoreSignals(text string) Signals {
	var s Signals
	for _, g := range signalGroups {
		if g.re.MatchString(text) {
			s.Found = append(s.Found, g.name)
		} else {
			s.Missing = append(s.Missing, g.name)
		}
	}
	s.Passed = len(s.Found) >= minSignals
	return s
}

// fallbackChecks are the groups counted by FallbackScore.
var fallbackChecks = []string{SignalPayment, SignalDeliverables, SignalBrand, SignalCreator}

const fallbackPass = 3

// FallbackScore counts how many of the payment, deliverable, brand and
// creator checks the text satisfies.
func FallbackScore(text string) int {
	score := 0
	for _, name := range fallbackChecks {
		for _, g := range signalGroups {
			if g.name == name && g.re.MatchString(text) {
				score++
				break
			}
		}
	}
	return score
}

package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const binaryPromptTemplate = `You are screening documents uploaded to a platform for social media creators.
Decide whether the document below is a BRAND DEAL CONTRACT: an agreement between a brand
(or its agency) and a content creator or influencer.

Answer YES only if ALL of the following are present:
- a brand, sponsor or agency AND a creator, influencer or talent as parties
- deliverables such as posts, reels, stories, videos or other content
- payment, fees or other compensation for the creator

Answer NO if the document is any of the following, or anything else that is not a brand deal:
- a legal notice, court filing or affidavit
- an invoice, receipt or tax document (GST return, TDS certificate, income tax return)
- an identity document, insurance policy or vehicle rental agreement
- an employment offer, salary slip, loan agreement or property document

Reply with exactly one word: YES or NO.

Document:
"""
%s
"""`

const confidencePromptTemplate = `The document below was identified as a brand deal contract between a brand and a
content creator.

Is this DEFINITELY a brand deal contract? Reply with exactly one word: CONFIDENT or NOT_CONFIDENT.

Document:
"""
%s
"""`

var (
	confidentWord     = regexp.MustCompile(`\bCONFIDENT\b`)
	notConfidentWords = regexp.MustCompile(`\bNOT[\s_-]*CONFIDENT\b`)
)

// ParseBinaryReply accepts a reply only when it contains YES and nowhere
// contains NO, so "NOTE" or "KNOW" in a chatty reply also rejects.
func ParseBinaryReply(raw string) bool {
	reply := strings.ToUpper(strings.TrimSpace(raw))
	return strings.Contains(reply, "YES") && !strings.Contains(reply, "NO")
}

func ParseConfidenceReply(raw string) bool {
	reply := strings.ToUpper(strings.TrimSpace(raw))
	if notConfidentWords.MatchString(reply) {
		return false
	}
	return confidentWord.MatchString(reply)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

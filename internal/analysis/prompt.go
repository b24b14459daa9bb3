package analysis

import (
	"fmt"
	"unicode/utf8"
)

const promptTemplate = `You are a contract lawyer who protects social media creators in India.
Review the brand deal contract below from the creator's point of view.

Look for, among others: payment amount and due dates, late payment terms, exclusivity and
non-compete restrictions, usage rights and their duration, content approval and revision
rounds, termination and kill fees, indemnity and liability, intellectual property ownership,
GST and TDS handling, and jurisdiction.

Return ONLY a JSON object, no prose, with exactly these fields:
{
  "protectionScore": <integer 0-100, how well the contract protects the creator>,
  "overallRisk": "low" | "medium" | "high",
  "issues": [
    {"severity": "high" | "medium" | "low" | "warning", "category": "<topic>", "title": "<short title>",
     "description": "<what is wrong and why it matters>", "clause": "<quoted clause, optional>",
     "recommendation": "<what the creator should ask for>"}
  ],
  "verified": [
    {"category": "<topic>", "title": "<short title>", "description": "<why this clause is fair>",
     "clause": "<quoted clause, optional>"}
  ],
  "keyTerms": {"dealValue": "", "duration": "", "deliverables": "", "paymentSchedule": "",
               "exclusivity": "", "payment": "", "brandName": ""},
  "recommendations": ["<next step>", "..."]
}
Leave a keyTerms field empty when the contract does not state it.

Contract:
"""
%s
"""`

func buildPrompt(text string, maxChars int) string {
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		runes := []rune(text)
		text = string(runes[:maxChars])
	}
	return fmt.Sprintf(promptTemplate, text)
}

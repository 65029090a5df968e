package agent

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"neuro-triage/internal/soap"
)

// lexicon is the offline extractor's vocabulary, used when no NLP backend is
// configured.
var lexicon = map[string][]string{
	soap.LabelSymptom: {
		"slurred speech", "speech difficulty", "unable to speak", "facial droop",
		"weakness", "paralysis", "numbness", "headache", "confusion", "dizziness",
		"vision loss", "blurred vision", "fatigue", "memory loss",
	},
	soap.LabelDiagnosis: {
		"ischemic stroke", "hemorrhagic stroke", "transient ischemic attack", "tia", "stroke",
	},
	soap.LabelDisease: {
		"hypertension", "diabetes", "atrial fibrillation", "hyperlipidemia",
	},
	soap.LabelTreatment: {
		"thrombolysis", "thrombectomy", "alteplase", "tpa", "aspirin",
		"physical therapy", "speech therapy", "occupational therapy",
	},
}

var examPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bnihss\s*(?:score\s*)?(?:of\s*)?\d+\b`),
	regexp.MustCompile(`(?i)\b(?:bp|blood pressure)\s*(?:of\s*)?\d{2,3}/\d{2,3}\b`),
	regexp.MustCompile(`(?i)\bglucose\s*(?:of\s*)?\d+(?:\.\d+)?\b`),
	regexp.MustCompile(`(?i)\b(?:ct|mri)\s+(?:scan\s+)?(?:negative|positive|normal|abnormal|shows?)\b[^.;,]*`),
}

type lexiconTerm struct {
	label string
	re    *regexp.Regexp
}

// LexiconExtractor is a local soap.Extractor matching a fixed vocabulary on
// word boundaries. Longer terms win over terms they contain.
type LexiconExtractor struct {
	terms []lexiconTerm
}

func NewLexiconExtractor() *LexiconExtractor {
	var terms []lexiconTerm
	for label, words := range lexicon {
		for _, w := range words {
			terms = append(terms, lexiconTerm{
				label: label,
				re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
			})
		}
	}
	for _, re := range examPatterns {
		terms = append(terms, lexiconTerm{label: soap.LabelExamResult, re: re})
	}
	return &LexiconExtractor{terms: terms}
}

type span struct {
	start, end int
	entity     soap.Entity
}

func (l *LexiconExtractor) Extract(_ context.Context, text string) ([]soap.Entity, error) {
	var spans []span
	for _, term := range l.terms {
		for _, loc := range term.re.FindAllStringIndex(text, -1) {
			spans = append(spans, span{
				start:  loc[0],
				end:    loc[1],
				entity: soap.Entity{Text: strings.TrimSpace(text[loc[0]:loc[1]]), Label: term.label},
			})
		}
	}

	// Earliest first, longest first at the same offset; then drop overlaps.
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	entities := make([]soap.Entity, 0, len(spans))
	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		entities = append(entities, s.entity)
		lastEnd = s.end
	}
	return entities, nil
}

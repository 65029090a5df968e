// Package soap assembles Subjective/Objective/Assessment/Plan summaries from
// labelled entities, symptom reports and clinician-typed fields.
package soap

import (
	"fmt"
	"strings"
)

// Entity labels produced by the extraction collaborator.
const (
	LabelSymptom    = "SYMPTOM"
	LabelExamResult = "EXAM_RESULT"
	LabelDiagnosis  = "DIAGNOSIS"
	LabelDisease    = "DISEASE"
	LabelTreatment  = "TREATMENT"
)

// Entity is one labelled span of text. The label vocabulary is open.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

type Note struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

func (n Note) IsEmpty() bool {
	return n.Subjective == "" && n.Objective == "" && n.Assessment == "" && n.Plan == ""
}

// Partition groups entities into the four SOAP buckets by label. Unknown
// labels are dropped; each bucket keeps first-seen order without duplicates.
func Partition(entities []Entity) Note {
	var s, o, a, p bucket
	for _, e := range entities {
		switch strings.ToUpper(strings.TrimSpace(e.Label)) {
		case LabelSymptom:
			s.add(e.Text)
		case LabelExamResult:
			o.add(e.Text)
		case LabelDiagnosis, LabelDisease:
			a.add(e.Text)
		case LabelTreatment:
			p.add(e.Text)
		}
	}
	return Note{
		Subjective: s.String(),
		Objective:  o.String(),
		Assessment: a.String(),
		Plan:       p.String(),
	}
}

// FromSymptoms fills the note by template from the reported symptoms and
// recommendation lines.
func FromSymptoms(symptoms []string, verdict string, recommendations []string) Note {
	var n Note
	if len(symptoms) > 0 {
		n.Subjective = fmt.Sprintf("Patient reports %s.", strings.Join(symptoms, ", "))
	} else {
		n.Subjective = "No symptoms reported."
	}
	if verdict != "" {
		n.Assessment = fmt.Sprintf("Triage level: %s.", verdict)
	}
	n.Plan = strings.Join(recommendations, " ")
	return n
}

// Merge prefers non-empty fields of manual over derived.
func Merge(manual, derived Note) Note {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) != "" {
			return strings.TrimSpace(a)
		}
		return b
	}
	return Note{
		Subjective: pick(manual.Subjective, derived.Subjective),
		Objective:  pick(manual.Objective, derived.Objective),
		Assessment: pick(manual.Assessment, derived.Assessment),
		Plan:       pick(manual.Plan, derived.Plan),
	}
}

type bucket struct {
	items []string
	seen  map[string]bool
}

func (b *bucket) add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	key := strings.ToLower(text)
	if b.seen == nil {
		b.seen = map[string]bool{}
	}
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.items = append(b.items, text)
}

func (b *bucket) String() string {
	return strings.Join(b.items, "; ")
}

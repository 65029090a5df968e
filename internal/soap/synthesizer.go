package soap

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// ExtractionUnavailable is shown when the entity extractor fails and the
// note falls back to the symptom template.
const ExtractionUnavailable = "Entity extraction unavailable; summary built from reported symptoms."

// Extractor labels spans of free text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]Entity, error)
}

// Input carries everything the synthesizer may draw from.
type Input struct {
	Text            string
	Symptoms        []string
	Verdict         string
	Recommendations []string
	Manual          Note
}

// Output is always usable; Notice is set when a collaborator degraded.
type Output struct {
	Note     Note     `json:"note"`
	Entities []Entity `json:"entities,omitempty"`
	Notice   string   `json:"notice,omitempty"`
}

type Synthesizer struct {
	extractor Extractor
	logger    *zap.Logger
}

func NewSynthesizer(extractor Extractor, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{extractor: extractor, logger: logger}
}

// Synthesize never fails: extraction errors are logged and reported via
// Output.Notice.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) Output {
	derived := FromSymptoms(in.Symptoms, in.Verdict, in.Recommendations)
	out := Output{}

	if strings.TrimSpace(in.Text) != "" && s.extractor != nil {
		entities, err := s.extractor.Extract(ctx, in.Text)
		if err != nil {
			s.logger.Warn("Entity extraction failed", zap.Error(err))
			out.Notice = ExtractionUnavailable
		} else {
			out.Entities = entities
			derived = Merge(Partition(entities), derived)
		}
	}

	out.Note = Merge(in.Manual, derived)
	return out
}

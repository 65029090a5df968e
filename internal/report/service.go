package report

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"neuro-triage/internal/assessment"
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
}

// Service renders assessments to PDF and XLSX and, when a Telegram client is
// configured, alerts the on-call clinician about urgent ones.
type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	fontPaths    []string
	logger       *zap.Logger
}

// NewService puts fontPath (if set) ahead of DefaultFontPaths. tg may be nil.
func NewService(tg TelegramClient, doctorChatID int64, fontPath string, logger *zap.Logger) *Service {
	paths := DefaultFontPaths
	if fontPath != "" {
		paths = append([]string{fontPath}, DefaultFontPaths...)
	}
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		fontPaths:    paths,
		logger:       logger,
	}
}

// NotifyUrgent sends a text alert, then the PDF summary. A PDF failure is
// logged; the text alert has already gone out.
func (s *Service) NotifyUrgent(ctx context.Context, a assessment.Assessment) error {
	if s.tgClient == nil || s.doctorChatID == 0 {
		return nil
	}

	if err := s.tgClient.SendMessage(ctx, s.doctorChatID, alertText(a)); err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}

	data, err := s.RenderPDF(a)
	if err != nil {
		s.logger.Warn("Skipping PDF attachment", zap.String("assessment_id", a.ID.String()), zap.Error(err))
		return nil
	}
	filename := fmt.Sprintf("assessment_%s.pdf", a.ID)
	if err := s.tgClient.SendDocument(ctx, s.doctorChatID, filename, data, "Triage summary"); err != nil {
		return fmt.Errorf("failed to send PDF: %w", err)
	}
	return nil
}

func alertText(a assessment.Assessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s stroke triage\n", strings.ToUpper(string(a.Verdict)))
	fmt.Fprintf(&b, "Age %d, severity %s, onset %.1f h\n", a.Patient.Age, a.Patient.Severity, a.Patient.OnsetHours)
	if len(a.Symptoms) > 0 {
		fmt.Fprintf(&b, "Symptoms: %s\n", strings.Join(a.Symptoms, ", "))
	}
	for _, l := range a.Recommendations.Lines {
		fmt.Fprintf(&b, "- %s\n", l)
	}
	fmt.Fprintf(&b, "ID: %s\n%s", a.ID, assessment.Disclaimer)
	return b.String()
}

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"neuro-triage/internal/soap"
)

const defaultExtractionModel = "gpt-4o-mini"

const extractionPrompt = `You label clinical text for a stroke triage demo.
Return only JSON of the form {"entities":[{"text":"...","label":"..."}]}.
Use the labels SYMPTOM, EXAM_RESULT, DIAGNOSIS, DISEASE, TREATMENT.
Copy span text verbatim from the input. Return {"entities":[]} when nothing applies.`

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// OpenAITranscriber implements STTClient with the hosted Whisper model.
type OpenAITranscriber struct {
	client *openai.Client
}

func NewOpenAITranscriber(apiKey, baseURL string) *OpenAITranscriber {
	return &OpenAITranscriber{client: newOpenAIClient(apiKey, baseURL)}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audioData),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrUnrecognizedSpeech
	}
	return text, nil
}

// OpenAIExtractor implements soap.Extractor with a chat completion that
// returns labelled spans as JSON.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

func NewOpenAIExtractor(apiKey, model, baseURL string) *OpenAIExtractor {
	if model == "" {
		model = defaultExtractionModel
	}
	return &OpenAIExtractor{
		client: newOpenAIClient(apiKey, baseURL),
		model:  model,
	}
}

type extractionResponse struct {
	Entities []soap.Entity `json:"entities"`
}

func (e *OpenAIExtractor) Extract(ctx context.Context, text string) ([]soap.Entity, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrServiceUnavailable)
	}
	return parseEntities(resp.Choices[0].Message.Content)
}

func parseEntities(content string) ([]soap.Entity, error) {
	content = strings.TrimSpace(content)
	// Models sometimes wrap JSON in a fenced block.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("empty extraction response")
	}

	var out extractionResponse
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	entities := make([]soap.Entity, 0, len(out.Entities))
	for _, ent := range out.Entities {
		if strings.TrimSpace(ent.Text) == "" || strings.TrimSpace(ent.Label) == "" {
			continue
		}
		ent.Label = strings.ToUpper(strings.TrimSpace(ent.Label))
		entities = append(entities, ent)
	}
	return entities, nil
}

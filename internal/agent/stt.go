package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DefaultSTTURL is the local Whisper transcription service.
const DefaultSTTURL = "http://stt:8000/transcribe"

type STTClient interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

type whisperClient struct {
	url        string
	httpClient *http.Client
}

// NewWhisperClient talks to a local Whisper service that accepts a multipart
// "file" upload of 16 kHz mono WAV and answers {"text": "..."}.
func NewWhisperClient(url string, timeout time.Duration) STTClient {
	if url == "" {
		url = DefaultSTTURL
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &whisperClient{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type sttResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (c *whisperClient) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audioData); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: %s", ErrUnrecognizedSpeech, strings.TrimSpace(string(respBody)))
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: STT API error: %s - %s", ErrServiceUnavailable, resp.Status, string(respBody))
	}

	var result sttResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: malformed STT response: %v", ErrServiceUnavailable, err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", ErrUnrecognizedSpeech
	}
	return text, nil
}

package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIEngine sends the recording to the hosted transcription API.
type OpenAIEngine struct {
	client   openai.Client
	model    string
	language string
	prompt   string
}

func NewOpenAIEngine(apiKey, model, language, prompt string, httpClient *http.Client) (*OpenAIEngine, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &OpenAIEngine{
		client:   openai.NewClient(opts...),
		model:    model,
		language: language,
		prompt:   prompt,
	}, nil
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Recognize(ctx context.Context, path string) (Recognition, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recognition{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(e.model),
	}
	lang := ""
	if e.language != "" && e.language != "auto" {
		lang = e.language
		params.Language = openai.String(lang)
	}
	if e.prompt != "" {
		params.Prompt = openai.String(e.prompt)
	}

	res, err := e.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Recognition{}, fmt.Errorf("transcription request: %w", err)
	}
	return Recognition{Text: res.Text, Language: lang}, nil
}

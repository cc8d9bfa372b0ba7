package transcriber

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openAIModel implements BatchModel using the OpenAI Whisper API.
type openAIModel struct {
	client   *openai.Client
	model    string
	language string
}

// newOpenAIModel creates a remote batch model.
func newOpenAIModel(apiKey, baseURL, model, language string) (*openAIModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided (set transcribe.openai.api_key or OPENAI_API_KEY)")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	if language == "auto" {
		language = ""
	}

	return &openAIModel{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		language: language,
	}, nil
}

// Transcribe uploads one chunk and returns the plain text response.
func (o *openAIModel) Transcribe(ctx context.Context, wavPath string) (string, error) {
	req := openai.AudioRequest{
		Model:    o.model,
		FilePath: wavPath,
		Format:   openai.AudioResponseFormatJSON,
		Language: o.language,
	}

	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transcription API error: %w", err)
	}
	return resp.Text, nil
}

func (o *openAIModel) Close() error {
	return nil
}

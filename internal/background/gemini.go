package background

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiClient generates images with a Gemini image model.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// RequestImage asks the model for one image. Gemini has no pixel size
// parameter, so the size is expressed as an aspect hint in the prompt.
func (c *GeminiClient) RequestImage(ctx context.Context, prompt string, size Size) ([]byte, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(fmt.Sprintf("%s. Render at roughly %s pixels.", prompt, size), genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyGeminiError(err)
	}
	return imageFromResponse(resp)
}

func imageFromResponse(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &UpstreamError{Class: ClassInvalidResponse, Message: "no candidates in response"}
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}
	return nil, &UpstreamError{Class: ClassInvalidResponse, Message: "response has no inline image"}
}

func classifyGeminiError(err error) *UpstreamError {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) {
			return &UpstreamError{Class: ClassTransient, Message: "request failed", Err: err}
		}
		apiErr = *apiErrPtr
	}

	ue := &UpstreamError{StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	switch {
	case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= 500:
		ue.Class = ClassTransient
	default:
		ue.Class = ClassPermanent
	}
	return ue
}

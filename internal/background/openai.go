package background

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/youruser/thumbapp/internal/util"
)

// OpenAIConfig configures the images/generations client.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Quality           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// OpenAIClient calls the OpenAI image generation endpoint.
type OpenAIClient struct {
	cfg     OpenAIConfig
	http    *http.Client
	limiter *rate.Limiter
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	}
	return &OpenAIClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

type openAIRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	N       int    `json:"n"`
}

type openAIResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// RequestImage asks for one image of the given size and returns its bytes.
func (c *OpenAIClient) RequestImage(ctx context.Context, prompt string, size Size) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(openAIRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Size:    size.String(),
		Quality: c.cfg.Quality,
		N:       1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UpstreamError{Class: ClassTransient, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, util.MaxDownloadBytes))
	if err != nil {
		return nil, &UpstreamError{Class: ClassTransient, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyOpenAIError(resp.StatusCode, body)
	}

	var out openAIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &UpstreamError{Class: ClassInvalidResponse, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	if len(out.Data) == 0 {
		return nil, &UpstreamError{Class: ClassInvalidResponse, StatusCode: resp.StatusCode, Message: "response has no image data"}
	}

	item := out.Data[0]
	switch {
	case item.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, &UpstreamError{Class: ClassInvalidResponse, Message: "bad base64 image", Err: err}
		}
		return data, nil
	case item.URL != "":
		return c.download(ctx, item.URL)
	}
	return nil, &UpstreamError{Class: ClassInvalidResponse, Message: "response has neither url nor b64_json"}
}

func (c *OpenAIClient) download(ctx context.Context, url string) ([]byte, error) {
	data, err := util.GetBytes(ctx, c.http, url)
	if err == nil {
		return data, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var se *util.StatusError
	if errors.As(err, &se) && se.StatusCode < 500 {
		return nil, &UpstreamError{Class: ClassInvalidResponse, StatusCode: se.StatusCode, Message: "image download rejected", Err: err}
	}
	return nil, &UpstreamError{Class: ClassTransient, Message: "image download failed", Err: err}
}

// classifyOpenAIError maps an error response onto a Class.
func classifyOpenAIError(status int, body []byte) *UpstreamError {
	var eb openAIErrorBody
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
		msg = eb.Error.Message
	}
	ue := &UpstreamError{StatusCode: status, Message: msg}

	lower := strings.ToLower(msg)
	switch {
	case status == http.StatusBadRequest && strings.Contains(lower, "size"):
		ue.Class = ClassSizeRejected
	case status == http.StatusTooManyRequests:
		if eb.Error.Code == "insufficient_quota" || eb.Error.Type == "insufficient_quota" || strings.Contains(lower, "quota") {
			ue.Class = ClassPermanent
		} else {
			ue.Class = ClassTransient
		}
	case status == http.StatusRequestTimeout || status >= 500:
		ue.Class = ClassTransient
	default:
		ue.Class = ClassPermanent
	}
	return ue
}

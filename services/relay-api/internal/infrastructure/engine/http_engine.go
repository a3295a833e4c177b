// Package engine adapts image generation backends to generation.Engine.
package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
)

type imageRequest struct {
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
	// Image is a data URL of the panel to continue from.
	Image string `json:"image,omitempty"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

// HTTPEngine calls an OpenAI style /v1/images/generations endpoint.
type HTTPEngine struct {
	httpClient *resty.Client
}

// NewHTTPEngine creates a Resty-backed engine.
func NewHTTPEngine(baseURL, apiKey string, timeout time.Duration) *HTTPEngine {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPEngine{httpClient: client}
}

// Name implements generation.Engine.
func (e *HTTPEngine) Name() string { return "http" }

// Generate renders one image.
func (e *HTTPEngine) Generate(ctx context.Context, req generation.Request) (*generation.Output, error) {
	body := imageRequest{
		Prompt:         req.Prompt,
		N:              1,
		ResponseFormat: "b64_json",
	}
	if req.Input != nil {
		body.Image = "data:" + req.Input.ContentType + ";base64," + base64.StdEncoding.EncodeToString(req.Input.Data)
	}

	var result imageResponse
	resp, err := e.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/v1/images/generations")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		err := fmt.Errorf("engine returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
		if resp.StatusCode() < http.StatusInternalServerError && resp.StatusCode() != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", generation.ErrPermanent, err)
		}
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("engine returned no images")
	}

	image := result.Data[0]
	if image.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(image.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		return &generation.Output{Data: data}, nil
	}
	if image.URL != "" {
		return e.download(ctx, image.URL)
	}
	return nil, fmt.Errorf("engine returned an empty image")
}

func (e *HTTPEngine) download(ctx context.Context, url string) (*generation.Output, error) {
	resp, err := e.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode())
	}
	return &generation.Output{Data: resp.Body(), ContentType: resp.Header().Get("Content-Type")}, nil
}

package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	openai "github.com/sashabaranov/go-openai"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
)

// OpenAIEngine renders panels through the OpenAI images API. Continuations
// go to the edits endpoint with the previous panel attached.
type OpenAIEngine struct {
	client *openai.Client
	model  string
	size   string
}

// OpenAIConfig configures OpenAIEngine. BaseURL defaults to the public API.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Size    string
	Timeout time.Duration
}

// NewOpenAIEngine creates an engine backed by go-openai.
func NewOpenAIEngine(cfg OpenAIConfig) *OpenAIEngine {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		clientCfg.BaseURL = base
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAIEngine{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		size:   cfg.Size,
	}
}

// Name implements generation.Engine.
func (e *OpenAIEngine) Name() string { return "openai" }

// Generate renders one image.
func (e *OpenAIEngine) Generate(ctx context.Context, req generation.Request) (*generation.Output, error) {
	var (
		resp openai.ImageResponse
		err  error
	)
	if req.Input != nil && len(req.Input.Data) > 0 {
		resp, err = e.client.CreateEditImage(ctx, openai.ImageEditRequest{
			Image:          panelUpload(req.Input),
			Prompt:         req.Prompt,
			Model:          e.model,
			N:              1,
			Size:           e.size,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
	} else {
		resp, err = e.client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         req.Prompt,
			Model:          e.model,
			N:              1,
			Size:           e.size,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
	}
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("engine returned no images")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &generation.Output{Data: data}, nil
}

func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError && status != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", generation.ErrPermanent, err)
	}
	return err
}

// panelUpload names the multipart part so the API can tell the image format.
func panelUpload(media *generation.Media) io.Reader {
	contentType := media.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(media.Data).String()
	}
	ext := ".png"
	if mt := mimetype.Lookup(contentType); mt != nil && mt.Extension() != "" {
		ext = mt.Extension()
	}
	return openai.WrapReader(bytes.NewReader(media.Data), media.ID+ext, contentType)
}

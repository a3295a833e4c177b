package engine_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/engine"
)

func TestHTTPEngine_DecodesBase64Image(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing api key, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString([]byte("PNGDATA")) + `"}]}`))
	}))
	defer server.Close()

	e := engine.NewHTTPEngine(server.URL, "secret", 5*time.Second)
	out, err := e.Generate(context.Background(), generation.Request{
		Prompt: "a fox",
		Input:  &generation.Media{ID: "media_1", ContentType: "image/png", Data: []byte("IN")},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(out.Data) != "PNGDATA" {
		t.Fatalf("unexpected data %q", out.Data)
	}
	if got["prompt"] != "a fox" {
		t.Fatalf("prompt not forwarded: %v", got)
	}
	image, _ := got["image"].(string)
	if !strings.HasPrefix(image, "data:image/png;base64,") {
		t.Fatalf("input image not forwarded as data URL: %q", image)
	}
}

func TestHTTPEngine_ClientErrorsArePermanent(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"bad request", http.StatusBadRequest, true},
		{"throttled", http.StatusTooManyRequests, false},
		{"server error", http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			_, err := engine.NewHTTPEngine(server.URL, "", time.Second).Generate(context.Background(), generation.Request{Prompt: "x"})
			if err == nil {
				t.Fatalf("expected error")
			}
			if errors.Is(err, generation.ErrPermanent) != tt.permanent {
				t.Fatalf("permanent = %v, want %v (%v)", !tt.permanent, tt.permanent, err)
			}
		})
	}
}

func TestStubEngine_IsDeterministic(t *testing.T) {
	e := engine.NewStubEngine(0)
	req := generation.Request{Prompt: "a <red> fox", Input: &generation.Media{ID: "media_prev"}}

	first, err := e.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, _ := e.Generate(context.Background(), req)
	if string(first.Data) != string(second.Data) {
		t.Fatalf("same prompt must render the same panel")
	}

	svg := string(first.Data)
	if !strings.HasPrefix(svg, "<svg") || !strings.Contains(svg, "a &lt;red&gt; fox") || !strings.Contains(svg, "continues media_prev") {
		t.Fatalf("unexpected svg: %s", svg)
	}
}

func TestStubEngine_HonoursCancellation(t *testing.T) {
	e := engine.NewStubEngine(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Generate(ctx, generation.Request{Prompt: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOpenAIEngine_GeneratesAndEdits(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte("PNGDATA"))
	var paths []string
	var editPrompt, editFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/v1/images/generations":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["prompt"] != "a fox" || body["response_format"] != "b64_json" {
				t.Errorf("unexpected generation body %v", body)
			}
		case "/v1/images/edits":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			editPrompt = r.FormValue("prompt")
			if _, header, err := r.FormFile("image"); err == nil {
				editFile = header.Filename
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[{"b64_json":"` + png + `"}]}`))
	}))
	defer server.Close()

	e := engine.NewOpenAIEngine(engine.OpenAIConfig{BaseURL: server.URL, APIKey: "secret", Timeout: 5 * time.Second})

	out, err := e.Generate(context.Background(), generation.Request{Prompt: "a fox"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(out.Data) != "PNGDATA" {
		t.Fatalf("unexpected data %q", out.Data)
	}

	_, err = e.Generate(context.Background(), generation.Request{
		Prompt: "the fox runs",
		Input:  &generation.Media{ID: "media_1", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\n")},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if editPrompt != "the fox runs" || editFile != "media_1.png" {
		t.Fatalf("unexpected edit request prompt=%q file=%q", editPrompt, editFile)
	}
	if len(paths) != 2 || paths[0] != "/v1/images/generations" || paths[1] != "/v1/images/edits" {
		t.Fatalf("unexpected calls %v", paths)
	}
}

func TestOpenAIEngine_ClientErrorsArePermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"prompt rejected","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	e := engine.NewOpenAIEngine(engine.OpenAIConfig{BaseURL: server.URL + "/v1"})
	_, err := e.Generate(context.Background(), generation.Request{Prompt: "x"})
	if !errors.Is(err, generation.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"html"
	"strings"
	"time"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
)

// StubEngine draws a deterministic SVG panel from the prompt. It keeps the
// service usable without an image backend.
type StubEngine struct {
	delay time.Duration
}

// NewStubEngine creates a stub that waits delay before returning.
func NewStubEngine(delay time.Duration) *StubEngine {
	return &StubEngine{delay: delay}
}

// Name implements generation.Engine.
func (e *StubEngine) Name() string { return "stub" }

// Generate renders the panel.
func (e *StubEngine) Generate(ctx context.Context, req generation.Request) (*generation.Output, error) {
	if e.delay > 0 {
		timer := time.NewTimer(e.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(req.Prompt))
	sum := h.Sum32()
	background := fmt.Sprintf("#%06x", sum&0xffffff)

	caption := req.Prompt
	if len(caption) > 120 {
		caption = caption[:120] + "..."
	}
	var footer string
	if req.Input != nil {
		footer = "continues " + req.Input.ID
	}

	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="512" height="512" viewBox="0 0 512 512">`)
	fmt.Fprintf(&b, `<rect width="512" height="512" fill="%s"/>`, background)
	fmt.Fprintf(&b, `<text x="24" y="256" font-family="sans-serif" font-size="18" fill="#ffffff">%s</text>`, html.EscapeString(caption))
	if footer != "" {
		fmt.Fprintf(&b, `<text x="24" y="488" font-family="monospace" font-size="12" fill="#ffffff">%s</text>`, html.EscapeString(footer))
	}
	b.WriteString(`</svg>`)

	return &generation.Output{Data: []byte(b.String())}, nil
}

package writer_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/zhouzirui/chaptered-writer/backend/internal/service/ai"
)

type call struct {
	kind string
	req  ai.Request
}

// scriptedGenerator answers by prompt content. textFn/listFn run for every call.
type scriptedGenerator struct {
	mu     sync.Mutex
	calls  []call
	textFn func(req ai.Request) (string, error)
	listFn func(req ai.Request) ([]string, error)
}

func (g *scriptedGenerator) GenerateText(_ context.Context, req ai.Request) (string, error) {
	g.record("text", req)
	if g.textFn == nil {
		return "", errors.New("no text script")
	}
	return g.textFn(req)
}

func (g *scriptedGenerator) GenerateList(_ context.Context, req ai.Request) ([]string, error) {
	g.record("list", req)
	if g.listFn == nil {
		return nil, errors.New("no list script")
	}
	return g.listFn(req)
}

func (g *scriptedGenerator) record(kind string, req ai.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call{kind: kind, req: req})
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *scriptedGenerator) callsOf(kind string) []call {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []call
	for _, c := range g.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// chapterOf extracts the chapter title from a body prompt.
func chapterOf(prompt string) string {
	start := strings.Index(prompt, "「")
	end := strings.Index(prompt, "」")
	if start < 0 || end < start {
		return ""
	}
	return prompt[start+len("「") : end]
}

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

type fakeSearchProvider struct {
	result string
	err    error
	calls  int
}

func (f *fakeSearchProvider) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: "fake_search"}, nil
}

func (f *fakeSearchProvider) InvokableRun(ctx context.Context, args string, opts ...tool.Option) (string, error) {
	f.calls++
	return f.result, f.err
}

func TestWebSearchRejectsInvalidParams(t *testing.T) {
	ws := &webSearchTool{}
	if _, err := ws.run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil params")
	}
	if _, err := ws.run(context.Background(), &webSearchParams{Query: "   "}); err == nil {
		t.Fatalf("expected error for blank query")
	}
}

func TestWebSearchFallsBackToSecondProvider(t *testing.T) {
	google := &fakeSearchProvider{err: errors.New("quota exceeded")}
	duck := &fakeSearchProvider{result: "answer"}
	ws := &webSearchTool{google: google, duck: duck}

	result, err := ws.run(context.Background(), &webSearchParams{Query: "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "answer" {
		t.Fatalf("result = %q", result)
	}
	if google.calls != 1 || duck.calls != 1 {
		t.Fatalf("expected both providers tried, got google=%d duck=%d", google.calls, duck.calls)
	}
}

func TestWebSearchFailsWithoutProviders(t *testing.T) {
	ws := &webSearchTool{}
	if _, err := ws.run(context.Background(), &webSearchParams{Query: "go"}); err == nil {
		t.Fatalf("expected error when no provider succeeds")
	}
}

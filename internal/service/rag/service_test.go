package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/models"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/vector"

	"github.com/cloudwego/eino/schema"
)

// fakeEmbedder maps known words onto fixed unit vectors so similarity
// ordering is predictable.
type fakeEmbedder struct {
	calls int
	fail  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedder down")
	}
	switch {
	case strings.Contains(text, "cat"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(text, "dog"):
		return []float32{0.9, 0.1, 0}, nil
	case strings.Contains(text, "train"):
		return []float32{0, 0, 1}, nil
	default:
		return []float32{0, 1, 0}, nil
	}
}

type fakeAnswerer struct {
	lastUserPrompt   string
	lastSystemPrompt string
	reply            string
}

func (f *fakeAnswerer) GetResponseText(_ context.Context, userPrompt, systemPrompt, _ string) (string, error) {
	f.lastUserPrompt = userPrompt
	f.lastSystemPrompt = systemPrompt
	return f.reply, nil
}

func (f *fakeAnswerer) StreamPrompt(_ context.Context, prompt string, modelID string) (*schema.StreamReader[*models.StreamingChatResponse], error) {
	f.lastUserPrompt = prompt
	out, sw := schema.Pipe[*models.StreamingChatResponse](2)
	go func() {
		defer sw.Close()
		sw.Send(&models.StreamingChatResponse{
			StreamingID: "S1",
			ModelID:     modelID,
			HasFinished: true,
			Message:     models.ChatMsg{Sender: models.SenderAssistant, Text: f.reply},
		}, nil)
	}()
	return out, nil
}

func newTestService(t *testing.T) (*Service, *fakeEmbedder, *fakeAnswerer) {
	t.Helper()
	embedder := &fakeEmbedder{}
	answerer := &fakeAnswerer{reply: "a cat is a small feline"}
	svc, err := NewService(embedder, vector.NewMemoryStore(), answerer, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, embedder, answerer
}

func TestUpsertAndGetText(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.UpsertText(ctx, "", "a cat sat on the mat")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}

	rec, err := svc.GetText(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Text != "a cat sat on the mat" {
		t.Fatalf("text = %q", rec.Text)
	}
	if len(rec.Vector) == 0 {
		t.Fatalf("record stored without vector")
	}

	// Explicit id replaces.
	if _, err := svc.UpsertText(ctx, id, "the dog barked"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	rec, _ = svc.GetText(ctx, id)
	if rec.Text != "the dog barked" {
		t.Fatalf("expected replacement, got %q", rec.Text)
	}
}

func TestUpsertEmptyTextFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.UpsertText(context.Background(), "", "   "); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestDeleteText(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	id, _ := svc.UpsertText(ctx, "", "a cat")
	if err := svc.DeleteText(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetText(ctx, id); !errors.Is(err, vector.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryTextSimilarity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, text := range []string{"the cat sleeps", "the dog runs", "the train departs"} {
		if _, err := svc.UpsertText(ctx, "", text); err != nil {
			t.Fatalf("upsert %q: %v", text, err)
		}
	}

	results, err := svc.QueryTextSimilarity(ctx, "where is the cat", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !strings.Contains(results[0].Record.Text, "cat") {
		t.Fatalf("best match = %q, want the cat entry", results[0].Record.Text)
	}
	if !strings.Contains(results[1].Record.Text, "dog") {
		t.Fatalf("second match = %q, want the dog entry", results[1].Record.Text)
	}
}

func TestQueryEmbedderFailure(t *testing.T) {
	svc, embedder, _ := newTestService(t)
	embedder.fail = true
	if _, err := svc.QueryTextSimilarity(context.Background(), "cat", 1); err == nil {
		t.Fatalf("expected error from failing embedder")
	}
}

func TestAskGroundsPromptOnContext(t *testing.T) {
	svc, _, answerer := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpsertText(ctx, "", "cats are small felines"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	reply, err := svc.Ask(ctx, "what is a cat", 3, "")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if reply != "a cat is a small feline" {
		t.Fatalf("reply = %q", reply)
	}
	if !strings.Contains(answerer.lastUserPrompt, "cats are small felines") {
		t.Fatalf("prompt missing retrieved context: %q", answerer.lastUserPrompt)
	}
	if !strings.Contains(answerer.lastUserPrompt, "what is a cat") {
		t.Fatalf("prompt missing question: %q", answerer.lastUserPrompt)
	}
	if answerer.lastSystemPrompt == "" {
		t.Fatalf("expected grounding system prompt")
	}
}

func TestAskStreamDeliversChunks(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpsertText(ctx, "", "cats are small felines"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	reader, err := svc.AskStream(ctx, "what is a cat", 3, "")
	if err != nil {
		t.Fatalf("ask stream: %v", err)
	}
	defer reader.Close()

	chunk, err := reader.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !chunk.HasFinished || chunk.Message.Text == "" {
		t.Fatalf("unexpected chunk %+v", chunk)
	}
}

func TestAskWithEmptyStoreFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Ask(context.Background(), "anything", 3, ""); err == nil {
		t.Fatalf("expected error when nothing is stored")
	}
}

func TestFeedFile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "notes.txt")
	content := "cats are mammals\n\ndogs are mammals too\n\ntrains are not"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	ids, err := svc.FeedFile(ctx, path)
	if err != nil {
		t.Fatalf("feed file: %v", err)
	}
	if len(ids) == 0 {
		t.Fatalf("expected stored chunks")
	}

	records, err := svc.ListText(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var joined strings.Builder
	for _, r := range records {
		joined.WriteString(r.Text)
		joined.WriteString("\n")
	}
	for _, want := range []string{"cats are mammals", "dogs are mammals too", "trains are not"} {
		if !strings.Contains(joined.String(), want) {
			t.Fatalf("stored chunks missing %q", want)
		}
	}
}

func TestSplitChunks(t *testing.T) {
	long := strings.Repeat("x", 120)
	chunks := splitChunks("first\n\n"+long+"\n\nsecond", 50)
	if len(chunks) < 3 {
		t.Fatalf("expected long paragraph to be split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 50 {
			t.Fatalf("chunk %d exceeds size: %d", i, len(c))
		}
	}
}

package llm

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/models"

	"github.com/cloudwego/eino/schema"
)

func sourceChunk(text, finishReason string) *schema.Message {
	msg := &schema.Message{Role: schema.Assistant, Content: text}
	if finishReason != "" {
		msg.ResponseMeta = &schema.ResponseMeta{FinishReason: finishReason}
	}
	return msg
}

func recvAll(t *testing.T, reader *schema.StreamReader[*models.StreamingChatResponse]) ([]*models.StreamingChatResponse, error) {
	t.Helper()
	var chunks []*models.StreamingChatResponse
	for {
		chunk, err := reader.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return chunks, nil
			}
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
}

func TestCorrelateOrderingAndCompletion(t *testing.T) {
	src, sw := schema.Pipe[*schema.Message](4)
	go func() {
		sw.Send(sourceChunk("a", ""), nil)
		sw.Send(sourceChunk("b", ""), nil)
		sw.Send(sourceChunk("c", "stop"), nil)
		sw.Close()
	}()

	reader := Correlate(context.Background(), src, "llama3")
	chunks, err := recvAll(t, reader)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	for i, want := range []string{"a", "b", "c"} {
		if chunks[i].Message.Text != want {
			t.Fatalf("chunk %d text = %q, want %q", i, chunks[i].Message.Text, want)
		}
	}

	id := chunks[0].StreamingID
	if id == "" {
		t.Fatalf("streaming id is empty")
	}
	for i, c := range chunks {
		if c.StreamingID != id {
			t.Fatalf("chunk %d has different streaming id", i)
		}
		if c.ModelID != "llama3" {
			t.Fatalf("chunk %d model id = %q", i, c.ModelID)
		}
		if c.Message.Sender != models.SenderAssistant {
			t.Fatalf("chunk %d sender = %q", i, c.Message.Sender)
		}
		if c.CreatedAt.IsZero() {
			t.Fatalf("chunk %d missing timestamp", i)
		}
		wantFinished := i == len(chunks)-1
		if c.HasFinished != wantFinished {
			t.Fatalf("chunk %d HasFinished = %v", i, c.HasFinished)
		}
	}
}

func TestCorrelateStopsAtTerminalChunk(t *testing.T) {
	src, sw := schema.Pipe[*schema.Message](4)
	go func() {
		sw.Send(sourceChunk("done", "stop"), nil)
		// Anything after the finish reason must never surface.
		sw.Send(sourceChunk("stale", ""), nil)
		sw.Close()
	}()

	reader := Correlate(context.Background(), src, "m")
	chunks, err := recvAll(t, reader)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if len(chunks) != 1 || !chunks[0].HasFinished {
		t.Fatalf("expected single terminal chunk, got %#v", chunks)
	}
}

func TestCorrelatePropagatesModelError(t *testing.T) {
	modelErr := errors.New("model exploded")
	src, sw := schema.Pipe[*schema.Message](4)
	go func() {
		sw.Send(sourceChunk("a", ""), nil)
		sw.Send(nil, modelErr)
		sw.Close()
	}()

	reader := Correlate(context.Background(), src, "m")
	chunks, err := recvAll(t, reader)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk before failure, got %d", len(chunks))
	}
	if err == nil || !errors.Is(err, modelErr) {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestCorrelateReaderCloseStopsProducer(t *testing.T) {
	src, sw := schema.Pipe[*schema.Message](0)
	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		for i := 0; ; i++ {
			if closed := sw.Send(sourceChunk("x", ""), nil); closed {
				return
			}
		}
	}()

	reader := Correlate(context.Background(), src, "m")
	first, err := reader.Recv()
	if err != nil || first == nil {
		t.Fatalf("expected first chunk, got %v", err)
	}
	reader.Close()

	select {
	case <-producerDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("producer did not stop after reader close")
	}
}

func TestCorrelateContextCancellation(t *testing.T) {
	src, sw := schema.Pipe[*schema.Message](4)
	defer sw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	reader := Correlate(ctx, src, "m")

	sw.Send(sourceChunk("a", ""), nil)
	first, err := reader.Recv()
	if err != nil || first.Message.Text != "a" {
		t.Fatalf("expected chunk a, got %v %v", first, err)
	}

	cancel()

	// After cancellation the stream must terminate without more chunks.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := reader.Recv(); err != nil {
				return
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not terminate after cancellation")
	}
}

func TestCorrelateNoChunkAfterCancellation(t *testing.T) {
	src, sw := schema.Pipe[*schema.Message](0)

	ctx, cancel := context.WithCancel(context.Background())
	reader := Correlate(ctx, src, "m")

	go sw.Send(sourceChunk("a", ""), nil)
	first, err := reader.Recv()
	if err != nil || first.Message.Text != "a" {
		t.Fatalf("expected chunk a, got %v %v", first, err)
	}

	cancel()

	// A chunk the model produces after cancellation must never surface;
	// the unbuffered source also proves the producer stops pulling.
	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		sw.Send(sourceChunk("late", ""), nil)
		sw.Close()
	}()

	for {
		chunk, err := reader.Recv()
		if err != nil {
			break
		}
		if chunk.Message.Text == "late" {
			t.Fatalf("chunk delivered after cancellation")
		}
	}

	select {
	case <-sendDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("model send did not unblock after cancellation")
	}
}

func TestNextStreamingIDShape(t *testing.T) {
	a := NextStreamingID()
	b := NextStreamingID()
	if a == b {
		t.Fatalf("streaming ids should be unique")
	}
	if len(a) != 32 {
		t.Fatalf("unexpected id length: %d", len(a))
	}
	for _, r := range a {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			t.Fatalf("unexpected character %q in id %s", r, a)
		}
	}
}

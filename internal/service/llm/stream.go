package llm

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/models"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

const streamBuffer = 8

// NextStreamingID returns a fresh correlation token for one generation.
func NextStreamingID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Correlate converts the raw model stream into the labeled chunk stream the
// hub delivers to clients. Every chunk of one invocation shares the same
// streaming id, chunks are emitted in arrival order, and exactly the terminal
// chunk (the one carrying the model's finish reason) has HasFinished set.
//
// Termination: the stream closes on the terminal chunk, on a model error
// (propagated through the reader), or when the caller cancels, either via ctx
// or by closing the returned reader. No chunk is emitted after cancellation
// takes effect, and the underlying model stream is always released.
func Correlate(ctx context.Context, src *schema.StreamReader[*schema.Message], modelID string) *schema.StreamReader[*models.StreamingChatResponse] {
	id := NextStreamingID()
	out, sink := schema.Pipe[*models.StreamingChatResponse](streamBuffer)

	go func() {
		defer sink.Close()
		defer src.Close()

		// Recv blocks without looking at ctx; closing the source from a
		// watcher unblocks it so a silent model cannot outlive the caller.
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				src.Close()
			case <-done:
			}
		}()

		log.Printf("streaming %s started", id)
		for {
			msg, err := src.Recv()
			if ctx.Err() != nil {
				log.Printf("streaming %s cancelled", id)
				return
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				sink.Send(nil, err)
				return
			}

			hasFinished := msg.ResponseMeta != nil && msg.ResponseMeta.FinishReason != ""
			chunk := &models.StreamingChatResponse{
				StreamingID: id,
				ModelID:     modelID,
				HasFinished: hasFinished,
				Message:     models.ChatMsg{Sender: models.SenderAssistant, Text: msg.Content},
				CreatedAt:   time.Now().UTC(),
			}

			if closed := sink.Send(chunk, nil); closed {
				// Consumer went away; stop pulling from the model.
				log.Printf("streaming %s reader closed", id)
				return
			}
			if hasFinished {
				log.Printf("streaming %s completed", id)
				return
			}
		}
	}()

	return out
}

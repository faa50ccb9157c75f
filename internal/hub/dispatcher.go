package hub

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/models"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/service/llm"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/storage"

	"github.com/cloudwego/eino/schema"
)

// chatLogTimeout bounds the best-effort exchange log write.
const chatLogTimeout = 5 * time.Second

// ModelClient is the language-model boundary the dispatcher invokes.
type ModelClient interface {
	GetResponse(ctx context.Context, msgs []*schema.Message, modelID string) (*llm.ChatResult, error)
	StreamResponse(ctx context.Context, msgs []*schema.Message, modelID string) (*schema.StreamReader[*models.StreamingChatResponse], error)
}

// Sink delivers outbound events to exactly one connection. Implementations
// must not block; delivery to a gone connection is a no-op.
type Sink interface {
	SendSingle(connectionID string, resp *models.SingleChatResponse)
	SendChained(connectionID string, resp *models.ChainedChatResponse)
	SendStreamChunk(connectionID string, chunk *models.StreamingChatResponse)
	SendStreamEnd(connectionID string, streamingID string)
	SendError(connectionID string, message string)
}

// Dispatcher orchestrates one inbound request end to end: resolve the session
// behind the connection id, validate the payload, invoke the model and route
// the result back to that one connection. Requests that cannot be attributed
// to a session or fail validation are dropped with a log line; collaborator
// failures are routed to the caller as error events.
type Dispatcher struct {
	registry *Registry
	model    ModelClient
	sink     Sink
	logs     *storage.ChatLogStore
}

func NewDispatcher(registry *Registry, model ModelClient, sink Sink, logs *storage.ChatLogStore) *Dispatcher {
	return &Dispatcher{registry: registry, model: model, sink: sink, logs: logs}
}

// resolve maps the connection id to its session, or nil for the silent abort.
func (d *Dispatcher) resolve(connectionID, op string) *models.UserSession {
	se := d.registry.Find(connectionID, models.KeyConnectionID)
	if se == nil {
		log.Printf("%s dropped: no session for connection %s", op, connectionID)
	}
	return se
}

func validPrompt(prompt *models.ChatMsg) bool {
	return prompt != nil && strings.TrimSpace(prompt.Text) != ""
}

// generate runs the shared non-streaming pipeline: build the ordered message
// list (history then latest), invoke the model and time it. The two public
// request shapes differ only in their response envelope.
func (d *Dispatcher) generate(ctx context.Context, se *models.UserSession, history []models.ChatMsg, latest *models.ChatMsg, modelID, op string) (*llm.ChatResult, time.Duration, bool) {
	start := time.Now()
	res, err := d.model.GetResponse(ctx, llm.BuildMessages(history, latest), modelID)
	if err != nil {
		log.Printf("%s for %s failed: %v", op, se.Username, err)
		d.sink.SendError(se.ConnectionID, err.Error())
		return nil, 0, false
	}
	return res, time.Since(start), true
}

// HandleSingle serves a one-shot prompt with no history.
func (d *Dispatcher) HandleSingle(ctx context.Context, connectionID string, req *models.SingleChatRequest) {
	se := d.resolve(connectionID, "single chat")
	if se == nil {
		return
	}
	if req == nil || !validPrompt(req.Prompt) {
		log.Printf("single chat dropped: empty prompt from %s", se.Username)
		return
	}

	res, elapsed, ok := d.generate(ctx, se, nil, req.Prompt, req.ModelID, "single chat")
	if !ok {
		return
	}
	d.sink.SendSingle(connectionID, &models.SingleChatResponse{
		Username:        se.Username,
		ConnectionID:    se.ConnectionID,
		RequestMessage:  *req.Prompt,
		ResponseMessage: models.ChatMsg{Sender: models.SenderAssistant, Text: res.Message.Content},
		Duration:        elapsed,
		ModelID:         res.ModelID,
	})
	d.recordLog(se, storage.KindSingle, res.ModelID, req.Prompt.Text, res.Message.Content, elapsed)
}

// HandleChained serves a prompt carrying prior conversation turns.
func (d *Dispatcher) HandleChained(ctx context.Context, connectionID string, req *models.ChainedChatRequest) {
	se := d.resolve(connectionID, "chained chat")
	if se == nil {
		return
	}
	if req == nil || !validPrompt(req.Prompt) {
		log.Printf("chained chat dropped: empty prompt from %s", se.Username)
		return
	}

	res, elapsed, ok := d.generate(ctx, se, req.PreviousMessages, req.Prompt, req.ModelID, "chained chat")
	if !ok {
		return
	}
	d.sink.SendChained(connectionID, &models.ChainedChatResponse{
		Username:         se.Username,
		ConnectionID:     se.ConnectionID,
		PreviousMessages: append(append([]models.ChatMsg(nil), req.PreviousMessages...), *req.Prompt),
		ResponseMessage:  models.ChatMsg{Sender: models.SenderAssistant, Text: res.Message.Content},
		Duration:         elapsed,
		ModelID:          res.ModelID,
	})
	d.recordLog(se, storage.KindChained, res.ModelID, req.Prompt.Text, res.Message.Content, elapsed)
}

// HandleStream serves a prompt as an incremental chunk stream. The started
// callback fires once with the stream's correlation id, before the first
// chunk is delivered, so the caller can wire cancellation to it.
func (d *Dispatcher) HandleStream(ctx context.Context, connectionID string, req *models.ChainedChatRequest, started func(streamingID string)) {
	se := d.resolve(connectionID, "stream chat")
	if se == nil {
		return
	}
	if req == nil || !validPrompt(req.Prompt) {
		log.Printf("stream chat dropped: empty prompt from %s", se.Username)
		return
	}

	reader, err := d.model.StreamResponse(ctx, llm.BuildMessages(req.PreviousMessages, req.Prompt), req.ModelID)
	if err != nil {
		log.Printf("stream chat for %s failed to start: %v", se.Username, err)
		d.sink.SendError(connectionID, err.Error())
		return
	}
	d.pump(ctx, se, reader, storage.KindStream, req.Prompt.Text, started)
}

// HandleFileStream serves a prompt with an attached binary payload as an
// incremental chunk stream.
func (d *Dispatcher) HandleFileStream(ctx context.Context, connectionID string, req *models.FileChatRequest, started func(streamingID string)) {
	se := d.resolve(connectionID, "file chat")
	if se == nil {
		return
	}
	if req == nil || !validPrompt(req.Prompt) || len(req.FileData) == 0 || req.MediaType == "" {
		log.Printf("file chat dropped: incomplete request from connection %s", connectionID)
		return
	}

	msg := llm.BuildFileMessage(req.Prompt, req.FileData, req.MediaType)
	reader, err := d.model.StreamResponse(ctx, []*schema.Message{msg}, req.ModelID)
	if err != nil {
		log.Printf("file chat for %s failed to start: %v", se.Username, err)
		d.sink.SendError(connectionID, err.Error())
		return
	}
	d.pump(ctx, se, reader, storage.KindFile, req.Prompt.Text, started)
}

// pump drains the correlated chunk stream into the caller's connection.
func (d *Dispatcher) pump(ctx context.Context, se *models.UserSession, reader *schema.StreamReader[*models.StreamingChatResponse], kind, requestText string, started func(streamingID string)) {
	defer reader.Close()

	var (
		streamingID string
		full        strings.Builder
		finished    bool
		start       = time.Now()
	)
	for {
		chunk, err := reader.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("stream for %s failed: %v", se.Username, err)
				d.sink.SendError(se.ConnectionID, err.Error())
				return
			}
			break
		}
		if streamingID == "" {
			streamingID = chunk.StreamingID
			if started != nil {
				started(streamingID)
			}
		}
		full.WriteString(chunk.Message.Text)
		finished = chunk.HasFinished
		d.sink.SendStreamChunk(se.ConnectionID, chunk)
		if finished {
			d.recordLog(se, kind, chunk.ModelID, requestText, full.String(), time.Since(start))
		}
	}

	if ctx.Err() != nil {
		log.Printf("stream %s for %s cancelled", streamingID, se.Username)
		return
	}
	if streamingID != "" {
		d.sink.SendStreamEnd(se.ConnectionID, streamingID)
	}
}

// recordLog persists one completed exchange when storage is configured.
// Failures never affect delivery.
func (d *Dispatcher) recordLog(se *models.UserSession, kind, modelID, request, response string, duration time.Duration) {
	if d.logs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), chatLogTimeout)
	defer cancel()
	err := d.logs.Insert(ctx, storage.ChatLog{
		Username:     se.Username,
		ConnectionID: se.ConnectionID,
		Kind:         kind,
		ModelID:      modelID,
		Request:      request,
		Response:     response,
		DurationMS:   duration.Milliseconds(),
	})
	if err != nil {
		log.Printf("chat log write failed: %v", err)
	}
}

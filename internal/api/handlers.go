package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/config"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/hub"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/models"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/ollama"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/storage"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/vector"

	"github.com/cloudwego/eino/schema"
)

const maxFeedFileBytes = 10 << 20 // 10 MB

// ChatService is the one-shot prompt boundary for the REST chat endpoint.
type ChatService interface {
	GetResponseText(ctx context.Context, userPrompt, systemPrompt, modelID string) (string, error)
}

// RagService is the embedded-text boundary for the text endpoints.
type RagService interface {
	UpsertText(ctx context.Context, id, text string) (string, error)
	GetText(ctx context.Context, id string) (vector.TextRecord, error)
	DeleteText(ctx context.Context, id string) error
	ListText(ctx context.Context) ([]vector.TextRecord, error)
	QueryTextSimilarity(ctx context.Context, query string, limit int) ([]vector.SearchResult, error)
	AskStream(ctx context.Context, question string, limit int, modelID string) (*schema.StreamReader[*models.StreamingChatResponse], error)
	FeedFile(ctx context.Context, path string) ([]string, error)
}

// RuntimeClient inspects the local model runtime.
type RuntimeClient interface {
	IsRunning(ctx context.Context) bool
	ListInstalledModels(ctx context.Context) ([]ollama.ModelInfo, error)
	ListRunningModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// Handler wires the HTTP routes to the registry, the model services and the
// runtime client.
type Handler struct {
	registry *hub.Registry
	chat     ChatService
	rag      RagService
	runtime  RuntimeClient
	logs     *storage.ChatLogStore
	cfg      *config.Config
}

func NewHandler(registry *hub.Registry, chat ChatService, rag RagService, runtime RuntimeClient, logs *storage.ChatLogStore, cfg *config.Config) *Handler {
	return &Handler{
		registry: registry,
		chat:     chat,
		rag:      rag,
		runtime:  runtime,
		logs:     logs,
		cfg:      cfg,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")

	hubUser := api.Group("/hub/user")
	hubUser.GET("/is-username-registered", h.isUsernameRegistered)
	hubUser.GET("/is-connection-id-active", h.isConnectionIDActive)
	hubUser.GET("/get-by-username", h.getByUsername)
	hubUser.GET("/get-by-connection-id", h.getByConnectionID)
	hubUser.GET("/count-all", h.countAll)
	hubUser.GET("/list-all", h.listAll)

	chat := api.Group("/chat")
	chat.POST("/send", h.sendChat)
	chat.GET("/logs", h.listChatLogs)

	text := api.Group("/text")
	text.POST("/feed", h.feedText)
	text.GET("/get", h.getText)
	text.DELETE("/delete", h.deleteText)
	text.GET("/list-all", h.listText)
	text.POST("/query", h.queryText)
	text.POST("/ask", h.askText)
	text.POST("/feed-file", h.feedFile)

	api.GET("/info/runtime", h.runtimeInfo)

	llmRoutes := api.Group("/llm")
	llmRoutes.GET("/get-model", h.getModel)
	llmRoutes.GET("/list-all-models", h.listAllModels)
}

// Hub user routes.

func (h *Handler) isUsernameRegistered(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isRegistered": h.registry.Exists(username, models.KeyUsername)})
}

func (h *Handler) isConnectionIDActive(c *gin.Context) {
	connectionID := strings.TrimSpace(c.Query("connectionId"))
	if connectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "connectionId is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isActive": h.registry.IsActive(connectionID)})
}

func (h *Handler) getByUsername(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	se := h.registry.Find(username, models.KeyUsername)
	if se == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, se)
}

func (h *Handler) getByConnectionID(c *gin.Context) {
	connectionID := strings.TrimSpace(c.Query("connectionId"))
	if connectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "connectionId is required"})
		return
	}
	se := h.registry.Find(connectionID, models.KeyConnectionID)
	if se == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, se)
}

func (h *Handler) countAll(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": h.registry.CountAll()})
}

func (h *Handler) listAll(c *gin.Context) {
	sessions := h.registry.ListAllActive()
	if sessions == nil {
		sessions = make([]models.UserSession, 0)
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Chat routes.

type sendChatRequest struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"systemPrompt"`
	ModelID      string `json:"modelId"`
}

// sendChat serves a one-shot prompt. Model failures come back as the response
// text rather than an HTTP error, so the caller always gets a readable body.
func (h *Handler) sendChat(c *gin.Context) {
	var req sendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	resp, err := h.chat.GetResponseText(c.Request.Context(), req.Prompt, req.SystemPrompt, req.ModelID)
	if err != nil {
		log.Printf("chat send failed: %v", err)
		c.JSON(http.StatusOK, gin.H{"response": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": resp})
}

func (h *Handler) listChatLogs(c *gin.Context) {
	if h.logs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat logging is not configured"})
		return
	}
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.logs.ListByUsername(c.Request.Context(), username, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = make([]storage.ChatLog, 0)
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// Text routes.

type feedTextRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (h *Handler) feedText(c *gin.Context) {
	var req feedTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id, err := h.rag.UpsertText(c.Request.Context(), req.ID, req.Text)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *Handler) getText(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	rec, err := h.rag.GetText(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, vector.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "text not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": rec.ID, "text": rec.Text})
}

func (h *Handler) deleteText(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	if err := h.rag.DeleteText(c.Request.Context(), id); err != nil {
		if errors.Is(err, vector.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "text not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listText(c *gin.Context) {
	records, err := h.rag.ListText(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	list := make([]gin.H, 0, len(records))
	for _, rec := range records {
		list = append(list, gin.H{"id": rec.ID, "text": rec.Text})
	}
	c.JSON(http.StatusOK, gin.H{"texts": list})
}

type queryTextRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit"`
}

func (h *Handler) queryText(c *gin.Context) {
	var req queryTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	results, err := h.rag.QueryTextSimilarity(c.Request.Context(), req.Text, req.Limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list := make([]gin.H, 0, len(results))
	for _, r := range results {
		list = append(list, gin.H{"id": r.Record.ID, "text": r.Record.Text, "score": r.Score})
	}
	c.JSON(http.StatusOK, gin.H{"results": list})
}

type askTextRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit"`
	ModelID  string `json:"modelId"`
}

// askText answers a question grounded on stored text, streamed over SSE.
func (h *Handler) askText(c *gin.Context) {
	var req askTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	reader, err := h.rag.AskStream(c.Request.Context(), req.Question, req.Limit, req.ModelID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer reader.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if event != "" {
			if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	for {
		chunk, err := reader.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = sendEvent("done", gin.H{})
				return
			}
			_ = sendEvent("error", gin.H{"message": err.Error()})
			return
		}
		if err := sendEvent("stream", gin.H{
			"streamingId": chunk.StreamingID,
			"content":     chunk.Message.Text,
			"hasFinished": chunk.HasFinished,
		}); err != nil {
			return
		}
		if chunk.HasFinished {
			_ = sendEvent("done", gin.H{"streamingId": chunk.StreamingID})
			return
		}
	}
}

// feedFile accepts a document upload, parses it and stores its chunks.
func (h *Handler) feedFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxFeedFileBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	tmpDir, err := os.MkdirTemp("", "feed-file-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create temp dir failed"})
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, filepath.Base(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}

	ids, err := h.rag.FeedFile(c.Request.Context(), tmpPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids, "count": len(ids)})
}

// Info routes.

// runtimeInfo reports the model runtime status. Listing failures degrade to
// empty lists so a dead runtime still produces a well-formed response.
func (h *Handler) runtimeInfo(c *gin.Context) {
	ctx := c.Request.Context()
	running := h.runtime.IsRunning(ctx)

	installed, err := h.runtime.ListInstalledModels(ctx)
	if err != nil {
		log.Printf("list installed models failed: %v", err)
		installed = make([]ollama.ModelInfo, 0)
	}
	loaded, err := h.runtime.ListRunningModels(ctx)
	if err != nil {
		log.Printf("list running models failed: %v", err)
		loaded = make([]ollama.ModelInfo, 0)
	}

	c.JSON(http.StatusOK, gin.H{
		"isRunning":       running,
		"installedModels": installed,
		"runningModels":   loaded,
	})
}

// LLM routes.

func (h *Handler) getModel(c *gin.Context) {
	modelType := strings.TrimSpace(c.Query("type"))
	if modelType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type is required"})
		return
	}
	group, ok := h.cfg.Ollama.Models[modelType]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "model type not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": modelType, "model": group.Default})
}

func (h *Handler) listAllModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.cfg.Ollama.Models})
}

package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/models"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/vector"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

const (
	// defaultTopK bounds similarity queries when the caller does not ask
	// for a specific result count.
	defaultTopK = 5

	// feedChunkSize splits fed documents into upsert-sized pieces.
	feedChunkSize = 1500
)

const askSystemPrompt = "You are a helpful assistant. Answer the question using only the provided context. " +
	"If the context does not contain the answer, say you do not know."

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Answerer runs prompts against the language model, complete or streamed.
type Answerer interface {
	GetResponseText(ctx context.Context, userPrompt, systemPrompt, modelID string) (string, error)
	StreamPrompt(ctx context.Context, prompt string, modelID string) (*schema.StreamReader[*models.StreamingChatResponse], error)
}

// Service implements retrieval-augmented text storage and question answering
// over a vector store.
type Service struct {
	embedder Embedder
	store    vector.Store
	answerer Answerer
	cache    *QueryCache
	loader   *file.FileLoader
}

func NewService(embedder Embedder, store vector.Store, answerer Answerer, cache *QueryCache) (*Service, error) {
	parserExt, err := parser.NewExtParser(context.Background(), &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init document parser: %w", err)
	}
	loader, err := file.NewFileLoader(context.Background(), &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}

	return &Service{
		embedder: embedder,
		store:    store,
		answerer: answerer,
		cache:    cache,
		loader:   loader,
	}, nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if s.cache != nil {
		if vec, ok := s.cache.Get(ctx, text); ok {
			return vec, nil
		}
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(ctx, text, vec)
	}
	return vec, nil
}

// UpsertText embeds and stores one text entry, returning its id. An empty id
// gets a generated one; reusing an id replaces the entry.
func (s *Service) UpsertText(ctx context.Context, id, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("text must not be empty")
	}
	if id == "" {
		id = uuid.NewString()
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed text: %w", err)
	}
	if err := s.store.Upsert(ctx, vector.TextRecord{ID: id, Text: text, Vector: vec}); err != nil {
		return "", err
	}
	return id, nil
}

// GetText loads one stored entry by id.
func (s *Service) GetText(ctx context.Context, id string) (vector.TextRecord, error) {
	return s.store.Get(ctx, id)
}

// DeleteText removes one stored entry by id.
func (s *Service) DeleteText(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// ListText returns every stored entry.
func (s *Service) ListText(ctx context.Context) ([]vector.TextRecord, error) {
	return s.store.List(ctx)
}

// QueryTextSimilarity embeds the query and returns the most similar stored
// entries, best first.
func (s *Service) QueryTextSimilarity(ctx context.Context, query string, limit int) ([]vector.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	if limit <= 0 {
		limit = defaultTopK
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.Search(ctx, vec, limit)
}

// groundedPrompt assembles the retrieval context and the question into one
// prompt.
func (s *Service) groundedPrompt(ctx context.Context, question string, limit int) (string, error) {
	results, err := s.QueryTextSimilarity(ctx, question, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", errors.New("no stored text to answer from")
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Record.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String(), nil
}

// Ask answers a question grounded on the most similar stored entries.
func (s *Service) Ask(ctx context.Context, question string, limit int, modelID string) (string, error) {
	prompt, err := s.groundedPrompt(ctx, question, limit)
	if err != nil {
		return "", err
	}
	return s.answerer.GetResponseText(ctx, prompt, askSystemPrompt, modelID)
}

// AskStream answers a question grounded on the most similar stored entries as
// an incremental chunk stream.
func (s *Service) AskStream(ctx context.Context, question string, limit int, modelID string) (*schema.StreamReader[*models.StreamingChatResponse], error) {
	prompt, err := s.groundedPrompt(ctx, question, limit)
	if err != nil {
		return nil, err
	}
	return s.answerer.StreamPrompt(ctx, askSystemPrompt+"\n\n"+prompt, modelID)
}

// FeedFile parses the document at path, splits it into chunks and stores each
// chunk as its own entry. Returns the ids of the stored chunks.
func (s *Service) FeedFile(ctx context.Context, path string) ([]string, error) {
	docs, err := s.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return nil, fmt.Errorf("load file: %w", err)
	}

	var ids []string
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		for _, chunk := range splitChunks(content, feedChunkSize) {
			id, err := s.UpsertText(ctx, "", chunk)
			if err != nil {
				return ids, fmt.Errorf("store chunk: %w", err)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("file has no readable text content")
	}
	log.Printf("fed file %s as %d chunks", path, len(ids))
	return ids, nil
}

// splitChunks cuts text into pieces of at most size runes, preferring to
// break on paragraph boundaries.
func splitChunks(text string, size int) []string {
	var chunks []string
	paragraphs := strings.Split(text, "\n\n")

	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		runes := []rune(p)
		for len(runes) > size {
			flush()
			chunks = append(chunks, string(runes[:size]))
			runes = runes[size:]
		}
		if current.Len() > 0 && current.Len()+len(runes) > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(string(runes))
	}
	flush()
	return chunks
}

package main

import (
	"context"
	"log"
	"os"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/api"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/config"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/hub"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/ollama"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/redis"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/service/llm"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/service/rag"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/storage"
	"github.com/ahmadnazif/AiChatBackendDemo/internal/vector"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("AICHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	provider := os.Getenv("AICHAT_PROVIDER")
	if provider == "" {
		provider = "ollama"
	}
	log.Printf("provider: %s", provider)

	llmService, err := llm.NewService(ctx, cfg, provider)
	if err != nil {
		log.Fatalf("init model service: %v", err)
	}
	ollamaClient := ollama.NewClient(cfg.Ollama)

	// Redis is optional; without it the redis vector backend and the
	// embedding cache are unavailable.
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
	}

	var store vector.Store
	switch cfg.Vector.Backend {
	case "redis":
		if rdb == nil {
			log.Fatalf("vector backend redis requires redis configuration")
		}
		store = vector.NewRedisStore(rdb.Raw())
	default:
		store = vector.NewMemoryStore()
	}
	log.Printf("vector backend: %s", cfg.Vector.Backend)

	ragService, err := rag.NewService(ollamaClient, store, llmService, rag.NewQueryCache(rdb))
	if err != nil {
		log.Fatalf("init rag service: %v", err)
	}

	// Chat logging is optional; without a database the hub runs without it.
	var chatLogs *storage.ChatLogStore
	if dbType := os.Getenv("AICHAT_DB"); dbType != "" {
		db, err := storage.Open(dbType, cfg)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		if err := storage.Migrate(db, dbType); err != nil {
			log.Fatalf("migrate database: %v", err)
		}
		chatLogs = storage.NewChatLogStore(db)
		log.Printf("chat logging enabled (%s)", dbType)
	}

	registry := hub.NewRegistry()
	chatHub := hub.NewHub(registry)
	chatHub.SetDispatcher(hub.NewDispatcher(registry, llmService, chatHub, chatLogs))

	handlers := api.NewHandler(registry, llmService, ragService, ollamaClient, chatLogs, cfg)

	router := gin.Default()
	handlers.RegisterRoutes(router)
	router.GET("/ws/chat-hub", gin.WrapH(chatHub))

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

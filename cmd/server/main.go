package main

import (
	"log"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"study-ai/internal/api"
	"study-ai/internal/config"
	"study-ai/internal/db"
	"study-ai/internal/services"
	"study-ai/internal/vectorstore"
	"study-ai/internal/vectorstore/memory"
	"study-ai/internal/vectorstore/qdrant"
)

func main() {
	cfg := config.Load()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	var store vectorstore.Storage
	switch cfg.VectorStore {
	case "qdrant":
		store = qdrant.NewStorage(qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantColl,
		})
		log.Printf("vector store: qdrant (%s)", cfg.QdrantURL)
	default:
		store = memory.NewStorage()
		log.Printf("vector store: in-memory")
	}

	openAICfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIEndpoint != "" {
		openAICfg.BaseURL = cfg.OpenAIEndpoint
	}
	client := openai.NewClientWithConfig(openAICfg)

	embedder := services.NewOpenAIEmbedder(client, cfg.EmbeddingModel)
	embeddingService := services.NewEmbeddingService(embedder, cfg.EmbedCacheSize)
	documentService := services.NewDocumentService(conn, cfg.UploadDir)
	ingestionService := services.NewIngestionService(embeddingService, store)
	retrievalService := services.NewRetrievalService(embeddingService, store)
	aiService := services.NewAIService(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIEndpoint)
	guideService := services.NewGuideService(aiService)
	analysisStore := services.NewAnalysisStore(conn)
	analysisService := services.NewAnalysisService(aiService, retrievalService, guideService, analysisStore)
	toolsService := services.NewToolsService(aiService, retrievalService)

	server := api.NewServer(documentService, ingestionService, analysisService, analysisStore, toolsService)

	mux := http.NewServeMux()
	mux.Handle("/api", server.Handler())
	mux.Handle("/api/", server.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("listening on :%s", port)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

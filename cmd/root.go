/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/lesson-rag/config"
	"github.com/tieubaoca/lesson-rag/database"
	"github.com/tieubaoca/lesson-rag/pkg/logger"
	"github.com/tieubaoca/lesson-rag/service"
	"go.uber.org/zap"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lesson-rag",
	Short: "Lesson content RAG pipeline",
	Long: `lesson-rag turns raw lesson material (PDF files, articles, video
transcripts) into searchable vector embeddings stored per lesson, and
serves similarity-ranked passages back at question time.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config/config.yaml", "config file")
}

// pipeline bundles everything a command needs to ingest or query lessons.
type pipeline struct {
	cfg      *config.Config
	logger   *zap.Logger
	embedder service.Embedder
	store    database.VectorDatabase
	rag      *service.RAGService
}

func buildPipeline() *pipeline {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	embedder, err := service.NewEmbedder(cfg.Embedding, zapLogger)
	if err != nil {
		log.Fatalf("Failed to create embedding service: %v", err)
	}

	store, err := database.NewWeaviateStore(cfg.VectorStore, cfg.Retrieval, cfg.Embedding.BatchSize, embedder, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to Weaviate database: %v", err)
	}

	chunker := service.NewChunkingService(cfg.Chunking, zapLogger)
	processor := service.NewContentProcessor(chunker, zapLogger)
	downloader := service.NewDownloadService(cfg.Download, zapLogger)

	return &pipeline{
		cfg:      cfg,
		logger:   zapLogger,
		embedder: embedder,
		store:    store,
		rag:      service.NewRAGService(downloader, processor, store, zapLogger),
	}
}

func (p *pipeline) close() {
	p.embedder.Cleanup()
	_ = p.logger.Sync()
}

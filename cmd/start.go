/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/tieubaoca/lesson-rag/handler"
)

// startServerCmd represents the start command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the lesson RAG server",
	Long:  `Starts a server that ingests lesson content and answers similarity queries`,
	Run: func(cmd *cobra.Command, args []string) {
		p := buildPipeline()
		defer p.close()

		if err := p.store.Initialize(context.Background()); err != nil {
			log.Fatalf("Failed to initialize vector store: %v", err)
		}

		// Initialize handlers
		corsHandler := handler.NewCorsHandler()
		ingestHandler := handler.NewIngestHandler(p.rag)
		searchHandler := handler.NewSearchHandler(p.rag)
		lessonHandler := handler.NewLessonHandler(p.rag)

		// Setup Gin router
		router := gin.Default()

		// Apply global middleware
		router.Use(corsHandler.CorsMiddleware)

		apiV1 := router.Group("/api/v1")
		{
			apiV1.POST("/lessons/ingest", ingestHandler.IngestLessonHandler)
			apiV1.POST("/lessons/search", searchHandler.SearchHandler)
			apiV1.DELETE("/lessons/:lessonId", lessonHandler.DeleteLessonHandler)
			apiV1.GET("/lessons/:lessonId/exists", lessonHandler.LessonExistsHandler)
		}

		log.Printf("Starting server on port %s...\n", p.cfg.Port)
		if err := router.Run(":" + p.cfg.Port); err != nil {
			log.Fatal("Server error:", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(startServerCmd)
}

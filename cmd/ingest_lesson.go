/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/lesson-rag/types"
)

// ingestLessonCmd represents the ingest-lesson command
var ingestLessonCmd = &cobra.Command{
	Use:   "ingest-lesson",
	Short: "Ingest lesson content into the vector store",
	Long: `Downloads the given PDF files, chunks them together with any article
files and video transcript files, embeds the chunks and stores them in the
lesson's collection.`,
	Run: func(cmd *cobra.Command, args []string) {
		lessonID, _ := cmd.Flags().GetString("lesson-id")
		lessonName, _ := cmd.Flags().GetString("lesson-name")
		pdfURLs, _ := cmd.Flags().GetStringArray("pdf")
		articleFiles, _ := cmd.Flags().GetStringArray("article")
		transcriptFiles, _ := cmd.Flags().GetStringArray("transcript")

		req := types.IngestLessonRequest{
			LessonID:   lessonID,
			LessonName: lessonName,
			PDFFiles:   pdfURLs,
		}
		for _, path := range articleFiles {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Fatalf("Failed to read article file %s: %v", path, err)
			}
			req.Articles = append(req.Articles, string(data))
		}
		for _, path := range transcriptFiles {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Fatalf("Failed to read transcript file %s: %v", path, err)
			}
			req.VideoTranscripts = append(req.VideoTranscripts, string(data))
		}

		p := buildPipeline()
		defer p.close()

		statusChan := make(chan types.IngestStatus)
		go func() {
			for status := range statusChan {
				fmt.Printf("[%s] %s (%d%%)\n", status.Status, status.Message, status.Progress)
			}
		}()

		result, err := p.rag.ProcessContent(context.Background(), req, statusChan)
		close(statusChan)
		if err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}

		fmt.Printf("Ingested %d chunks (pdf: %d, articles: %d, videos: %d)\n",
			result.ChunksCreated,
			result.Breakdown.PDFChunks,
			result.Breakdown.ArticleChunks,
			result.Breakdown.VideoChunks)
	},
}

func init() {
	rootCmd.AddCommand(ingestLessonCmd)
	ingestLessonCmd.Flags().String("lesson-id", "", "lesson identifier")
	ingestLessonCmd.Flags().String("lesson-name", "", "lesson display name")
	ingestLessonCmd.Flags().StringArray("pdf", nil, "PDF file URL (repeatable)")
	ingestLessonCmd.Flags().StringArray("article", nil, "article text file (repeatable)")
	ingestLessonCmd.Flags().StringArray("transcript", nil, "video transcript file (repeatable)")
	ingestLessonCmd.MarkFlagRequired("lesson-id")
	ingestLessonCmd.MarkFlagRequired("lesson-name")
}

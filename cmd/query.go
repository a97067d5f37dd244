/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/lesson-rag/types"
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Search a lesson's content",
	Long:  `Embeds the question and prints the lesson passages ranked by similarity`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		lessonID, _ := cmd.Flags().GetString("lesson-id")
		topK, _ := cmd.Flags().GetInt("top-k")

		p := buildPipeline()
		defer p.close()

		results, err := p.rag.Retrieve(context.Background(), types.SearchRequest{
			LessonID: lessonID,
			Query:    args[0],
			TopK:     topK,
		})
		if err != nil {
			log.Fatalf("Search failed: %v", err)
		}

		if len(results) == 0 {
			fmt.Println("No matching passages found")
			return
		}
		for i, result := range results {
			fmt.Printf("--- result %d (score %.3f, %s) ---\n%s\n",
				i+1, result.Score, result.Metadata.SourceType, result.Text)
		}
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().String("lesson-id", "", "lesson identifier")
	queryCmd.Flags().Int("top-k", 0, "number of passages to return (0 uses the configured default)")
	queryCmd.MarkFlagRequired("lesson-id")
}

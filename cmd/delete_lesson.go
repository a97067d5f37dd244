/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// deleteLessonCmd represents the delete-lesson command
var deleteLessonCmd = &cobra.Command{
	Use:   "delete-lesson [lesson-id]",
	Short: "Delete a lesson's indexed content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p := buildPipeline()
		defer p.close()

		if err := p.rag.DeleteLesson(context.Background(), args[0]); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		fmt.Printf("Lesson %s deleted\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(deleteLessonCmd)
}

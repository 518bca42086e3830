package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/relatobot/internal/catalog"
	"github.com/user/relatobot/internal/types"
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogShowCmd, catalogCheckCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the question catalog",
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the questions the daemon would load",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		cat := catalog.Load(cfg.CatalogPath)
		if cat.Len() == 0 {
			fmt.Println("Catalog is empty.")
			return nil
		}
		printQuestions(cat.Questions())
		return nil
	},
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Validate a question definition file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read catalog file: %w", err)
		}
		questions, err := catalog.Parse(data, filepath.Ext(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d valid question(s).\n", len(questions))
		printQuestions(questions)
		return nil
	},
}

func printQuestions(questions []types.Question) {
	for _, q := range questions {
		switch q.Type {
		case types.QuestionMultipleChoice:
			fmt.Fprintf(os.Stdout, "%d. [choice] %s (%s)\n", q.Index+1, q.Prompt, strings.Join(q.Options, " | "))
		default:
			fmt.Fprintf(os.Stdout, "%d. [text]   %s\n", q.Index+1, q.Prompt)
		}
	}
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/chemgen/internal/attachment"
	"github.com/abhisek/chemgen/internal/export"
	"github.com/abhisek/chemgen/internal/questiongen"
	"github.com/abhisek/chemgen/internal/session"
)

var generateCmd = &cobra.Command{
	Use:   "generate [text]",
	Short: "Generate questions from text, an image or a document",
	Long: `Generate analyses the input once and prints the generated questions.
With --out, one Word file per question is written to the directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		imagePath, _ := cmd.Flags().GetString("image")
		docPath, _ := cmd.Flags().GetString("doc")
		outDir, _ := cmd.Flags().GetString("out")
		asJSON, _ := cmd.Flags().GetBool("json")

		format, err := questiongen.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		var text string
		if len(args) == 1 {
			text = args[0]
		}
		image, err := readInputFile(imagePath)
		if err != nil {
			return err
		}
		document, err := readInputFile(docPath)
		if err != nil {
			return err
		}

		in, err := attachment.Prepare(text, image, document)
		if err != nil {
			return fmt.Errorf("%s: %w", session.UserMessage(err), err)
		}

		d, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		results, err := d.service.Generate(ctx, questiongen.GenerateInput{Input: in, Format: format})
		if err != nil {
			return fmt.Errorf("%s: %w", session.UserMessage(err), err)
		}
		if len(results) == 0 {
			fmt.Println(session.MsgNoResults)
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
		} else {
			for i, r := range results {
				printResult(i+1, r)
			}
		}

		if outDir != "" {
			return writeWordFiles(outDir, results)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringP("format", "f", "mcq", "Target format: mcq, tf or short")
	generateCmd.Flags().String("image", "", "Path to an image of the question")
	generateCmd.Flags().String("doc", "", "Path to a PDF or Word document")
	generateCmd.Flags().StringP("out", "o", "", "Directory to write one Word file per question")
	generateCmd.Flags().Bool("json", false, "Print results as JSON")
}

func readInputFile(path string) (*attachment.File, error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &attachment.AttachmentReadError{Name: filepath.Base(path), Err: err}
	}
	return &attachment.File{Name: filepath.Base(path), Content: content}, nil
}

func printResult(n int, r questiongen.AnalysisResult) {
	q := r.Generated
	sep := strings.Repeat("─", 60)

	fmt.Println(sep)
	fmt.Printf("#%d  %s  |  %s  |  %s\n", n, q.Metadata.Format, q.Metadata.CompetencyCode, q.Metadata.Level)
	if r.Source.OriginalTopic != "" {
		fmt.Printf("Topic: %s\n", r.Source.OriginalTopic)
	}
	fmt.Println(sep)
	fmt.Println(q.Stem)

	switch q.Metadata.Format {
	case questiongen.FormatMultipleChoice:
		for _, k := range q.OptionKeys() {
			opt, _ := q.Option(k)
			fmt.Printf("  %s. %s\n", k, opt)
		}
		fmt.Printf("\nAnswer: %s\n", export.CorrectOption(q))
	case questiongen.FormatTrueFalse:
		for _, k := range questiongen.SubQuestionKeys {
			if s, ok := q.Option(k); ok && s != "" {
				fmt.Printf("  %s) %s\n", k, s)
			}
		}
		fmt.Printf("\nAnswer: %s\n", export.QuickKey(q))
	default:
		fmt.Printf("\nAnswer: %s\n", q.CorrectAnswer)
	}

	if q.Explanation != "" {
		fmt.Printf("\n%s\n", q.Explanation)
	}
	fmt.Println()
}

func writeWordFiles(dir string, results []questiongen.AnalysisResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	now := time.Now()
	for i, r := range results {
		// Offset the timestamp so names stay unique within one run.
		name := filepath.Join(dir, export.Filename(r.Generated, now.Add(time.Duration(i)*time.Millisecond)))
		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		werr := export.WriteQuestion(f, r.Generated)
		cerr := f.Close()
		if werr != nil {
			return fmt.Errorf("write %s: %w", name, werr)
		}
		if cerr != nil {
			return fmt.Errorf("close %s: %w", name, cerr)
		}
		fmt.Println("wrote", name)
	}
	return nil
}

package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"picturebook/internal/app"
	"picturebook/internal/book"
	"picturebook/internal/deck"
	"picturebook/pkg/config"
)

var (
	genTitle      string
	genTheme      string
	genWords      int
	genAnchor     string
	genStyle      string
	genStyleImage string
	genIntro      string
	genIllustrate bool
	genCover      bool
	genCoverRatio string
	genOutput     string
	genUpload     bool
	genOpen       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a picture book and export it as a slide deck",
	Long: `Generate writes the story script from the brief, optionally illustrates
every page and the cover, and saves the result as a .pptx deck.`,
	Example: `  picturebook generate -t "The Lost Kite" --theme friendship --illustrate
  picturebook generate -t "Moon Rabbit" --style-image ref.jpg --cover --cover-ratio 9:16 --open`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genTitle, "title", "t", "", "Book title (required)")
	generateCmd.Flags().StringVar(&genTheme, "theme", "", "Theme or lesson of the story")
	generateCmd.Flags().IntVarP(&genWords, "words", "w", 0, "Target word count, 200-2000 (default from config)")
	generateCmd.Flags().StringVar(&genAnchor, "anchor", "", "Visual anchor kept consistent on every page")
	generateCmd.Flags().StringVar(&genStyle, "style", "", "Art style prompt")
	generateCmd.Flags().StringVar(&genStyleImage, "style-image", "", "Reference image to derive the art style from")
	generateCmd.Flags().StringVar(&genIntro, "intro", "", "Introduction to build the story around")
	generateCmd.Flags().BoolVarP(&genIllustrate, "illustrate", "i", false, "Illustrate every page")
	generateCmd.Flags().BoolVar(&genCover, "cover", false, "Illustrate the cover")
	generateCmd.Flags().StringVar(&genCoverRatio, "cover-ratio", "", "Cover aspect ratio, 16:9 or 9:16")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Directory to save the deck in (default from config)")
	generateCmd.Flags().BoolVarP(&genUpload, "upload", "u", false, "Upload the deck to the configured GCS bucket")
	generateCmd.Flags().BoolVar(&genOpen, "open", false, "Open the deck when done")
	_ = generateCmd.MarkFlagRequired("title")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	service, pipeline, err := buildPipeline(ctx, genOutput)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	brief := book.Brief{
		Title:        genTitle,
		Theme:        genTheme,
		VisualAnchor: genAnchor,
		StylePrompt:  genStyle,
		Introduction: genIntro,
	}
	brief.WordCount = wordCount(genWords, service.Config().Book)
	if brief.StylePrompt == "" {
		brief.StylePrompt = service.Config().Book.StylePrompt
	}

	if genStyleImage != "" {
		style, err := styleFromImage(cmd, service, pipeline, genStyleImage)
		if err != nil {
			return err
		}
		brief.StylePrompt = style
	}

	creds := service.Credentials()
	if err := runProviderStep(ctx, creds, "Writing the story", func() error {
		return pipeline.SubmitScript(ctx, brief)
	}); err != nil {
		printFailure(err)
		return err
	}

	doc := pipeline.State().Document
	if doc == nil {
		return errors.New("no book was generated")
	}
	fmt.Println(titleStyle.Render("📖 " + doc.Title))
	fmt.Println(infoStyle.Render(fmt.Sprintf("%d pages", len(doc.Frames))))

	if genIllustrate {
		if err := runProviderStep(ctx, creds, fmt.Sprintf("Illustrating %d pages", len(doc.Frames)), func() error {
			return pipeline.RequestFrameImages(ctx)
		}); err != nil {
			printFailure(err)
		}
	}

	if genCover {
		if err := runProviderStep(ctx, creds, "Illustrating the cover", func() error {
			return pipeline.RequestCover(ctx, book.AspectRatio(genCoverRatio))
		}); err != nil {
			printFailure(err)
		}
	}

	location, err := exportDeck(cmd, pipeline, genUpload)
	if err != nil {
		return err
	}

	if genOpen {
		if err := browser.OpenFile(location); err != nil {
			fmt.Println(warnStyle.Render(fmt.Sprintf("Could not open %s: %v", location, err)))
		}
	}
	return nil
}

// wordCount is the flag value, or the configured count when the flag is unset.
func wordCount(flag int, cfg config.BookConfig) int {
	if flag > 0 {
		return flag
	}
	return cfg.WordCount
}

func styleFromImage(cmd *cobra.Command, service *app.Service, pipeline *app.Pipeline, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read style image: %w", err)
	}

	var style string
	err = runProviderStep(cmd.Context(), service.Credentials(), "Analyzing reference style", func() error {
		var analyzeErr error
		style, analyzeErr = pipeline.AnalyzeStyle(cmd.Context(), data, http.DetectContentType(data))
		return analyzeErr
	})
	if err != nil {
		printFailure(err)
		return "", err
	}
	fmt.Println(infoStyle.Render("Style: " + style))
	return style, nil
}

// exportDeck renders, saves and optionally uploads the current book. It
// returns the local path of the deck.
func exportDeck(cmd *cobra.Command, pipeline *app.Pipeline, upload bool) (string, error) {
	var result *deck.Result
	if err := runWithSpinner("Exporting slide deck", func() error {
		var exportErr error
		result, exportErr = pipeline.Export()
		return exportErr
	}); err != nil {
		printFailure(err)
		return "", err
	}

	location, err := pipeline.Save(cmd.Context(), result)
	if err != nil {
		printFailure(err)
		return "", err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Saved %d slides to %s", result.Slides, location)))

	if upload {
		remote, err := pipeline.Upload(cmd.Context(), result)
		if err != nil {
			printFailure(err)
			return location, err
		}
		fmt.Println(successStyle.Render("✓ Uploaded to " + remote))
	}

	if doc := pipeline.State().Document; doc != nil {
		if missing := len(doc.Frames) - doc.Counts()[book.Ready]; missing > 0 {
			fmt.Println(warnStyle.Render(fmt.Sprintf("%d %s without an illustration", missing, plural(missing, "page", "pages"))))
		}
	}
	return location, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

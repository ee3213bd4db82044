package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"picturebook/internal/app"
	"picturebook/internal/book"
)

const (
	actionIllustrateAll = "all"
	actionIllustrateOne = "one"
	actionCover         = "cover"
	actionExport        = "export"
	actionStartOver     = "restart"
	actionQuit          = "quit"
)

var studioCmd = &cobra.Command{
	Use:   "studio",
	Short: "Build a picture book interactively",
	Long: `Studio walks through a book step by step: fill in the brief, review the
storyboard, illustrate pages one at a time or all at once, and export.`,
	RunE: runStudio,
}

func init() {
	rootCmd.AddCommand(studioCmd)
}

func runStudio(cmd *cobra.Command, args []string) error {
	if !interactive() {
		return errors.New("studio needs a terminal; use `picturebook generate` instead")
	}
	ctx := cmd.Context()

	service, pipeline, err := buildPipeline(ctx, "")
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	fmt.Println(titleStyle.Render("📚 Picturebook Studio"))

	creds := service.Credentials()
	brief := book.Brief{WordCount: service.Config().Book.WordCount, StylePrompt: service.Config().Book.StylePrompt}
	for {
		if pipeline.State().Document == nil {
			styleImage, err := askBrief(&brief)
			if err != nil {
				return err
			}
			if styleImage != "" {
				// A failed analysis keeps the typed style.
				if style, err := styleFromImage(cmd, service, pipeline, styleImage); err == nil {
					brief.StylePrompt = style
				}
			}
			if err := runProviderStep(ctx, creds, "Writing the story", func() error {
				return pipeline.SubmitScript(ctx, brief)
			}); err != nil {
				printFailure(err)
				continue
			}
		}

		snap := pipeline.State()
		fmt.Println(renderStoryboard(snap))

		action, err := askAction(snap)
		if err != nil {
			return err
		}

		switch action {
		case actionIllustrateAll:
			if err := runProviderStep(ctx, creds, "Illustrating pages", func() error {
				return pipeline.RequestFrameImages(ctx)
			}); err != nil {
				printFailure(err)
			}
		case actionIllustrateOne:
			id, err := askFrame(snap.Document)
			if err != nil {
				return err
			}
			if err := runProviderStep(ctx, creds, "Illustrating page", func() error {
				return pipeline.RequestFrameImage(ctx, id)
			}); err != nil {
				printFailure(err)
			}
		case actionCover:
			ratio, err := askRatio()
			if err != nil {
				return err
			}
			pipeline.SetStage(app.StageCover)
			if err := runProviderStep(ctx, creds, "Illustrating the cover", func() error {
				return pipeline.RequestCover(ctx, ratio)
			}); err != nil {
				printFailure(err)
			}
		case actionExport:
			pipeline.SetStage(app.StageDeck)
			// exportDeck prints its own failures.
			_, _ = exportDeck(cmd, pipeline, service.Uploads() != nil)
		case actionStartOver:
			pipeline.Discard()
		case actionQuit:
			return nil
		}
	}
}

// askBrief fills brief from a form and returns the path of an optional
// style reference image.
func askBrief(brief *book.Brief) (string, error) {
	words := strconv.Itoa(brief.WordCount)
	var styleImage string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&brief.Title).
				Validate(required("Title")),
			huh.NewInput().
				Title("Theme").
				Description("What the story is about or should teach").
				Value(&brief.Theme),
			huh.NewInput().
				Title("Word count").
				Description(fmt.Sprintf("%d to %d", book.MinWordCount, book.MaxWordCount)).
				Value(&words).
				Validate(func(s string) error {
					if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
						return errors.New("enter a number")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Visual anchor").
				Description("A detail that appears on every page, e.g. a red kite").
				Value(&brief.VisualAnchor),
			huh.NewText().
				Title("Art style").
				Value(&brief.StylePrompt),
			huh.NewInput().
				Title("Style reference image").
				Description("Optional path to an image whose art style replaces the one above").
				Value(&styleImage).
				Validate(optionalFile),
			huh.NewText().
				Title("Introduction").
				Description("Optional summary to build the story around").
				Value(&brief.Introduction),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	brief.WordCount, _ = strconv.Atoi(strings.TrimSpace(words))
	return strings.TrimSpace(styleImage), nil
}

func optionalFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func askAction(snap app.Snapshot) (string, error) {
	pending := len(snap.Document.Frames) - snap.Document.Counts()[book.Ready]

	options := []huh.Option[string]{
		huh.NewOption(fmt.Sprintf("Illustrate remaining pages (%d)", pending), actionIllustrateAll),
		huh.NewOption("Illustrate one page", actionIllustrateOne),
		huh.NewOption("Illustrate the cover", actionCover),
		huh.NewOption("Export slide deck", actionExport),
		huh.NewOption("Start over", actionStartOver),
		huh.NewOption("Quit", actionQuit),
	}
	if pending == 0 {
		options = options[1:]
	}

	var action string
	err := huh.NewSelect[string]().
		Title("What next?").
		Options(options...).
		Value(&action).
		Run()
	return action, err
}

func askFrame(doc *book.Document) (string, error) {
	options := make([]huh.Option[string], len(doc.Frames))
	for i, f := range doc.Frames {
		options[i] = huh.NewOption(fmt.Sprintf("%d. %s", i+1, truncate(f.StoryText, 60)), f.ID)
	}

	var id string
	err := huh.NewSelect[string]().
		Title("Which page?").
		Options(options...).
		Value(&id).
		Run()
	return id, err
}

func askRatio() (book.AspectRatio, error) {
	ratio := book.Landscape
	err := huh.NewSelect[book.AspectRatio]().
		Title("Cover shape").
		Options(
			huh.NewOption("Landscape 16:9", book.Landscape),
			huh.NewOption("Portrait 9:16", book.Portrait),
		).
		Value(&ratio).
		Run()
	return ratio, err
}

var statusStyles = map[book.Status]lipgloss.Style{
	book.Idle:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	book.InFlight: infoStyle,
	book.Ready:    successStyle,
	book.Failed:   warnStyle,
}

func renderStoryboard(snap app.Snapshot) string {
	doc := snap.Document

	rows := make([][]string, 0, len(doc.Frames)+1)
	rows = append(rows, []string{"cover", statusLabel(doc.Cover.Status, doc.Cover.Error), truncate(doc.CoverPrompt, 60)})
	for i, f := range doc.Frames {
		rows = append(rows, []string{strconv.Itoa(i + 1), statusLabel(f.Status, f.Error), truncate(f.StoryText, 60)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("Page", "Image", "Text").
		Rows(rows...)

	header := titleStyle.Render(doc.Title)
	footer := infoStyle.Render(fmt.Sprintf("stage: %s  key: %s", snap.Stage, snap.Credential))
	return lipgloss.JoinVertical(lipgloss.Left, header, t.Render(), footer)
}

func statusLabel(status book.Status, errMsg string) string {
	label := status.String()
	if status == book.Failed && errMsg != "" {
		label += ": " + truncate(errMsg, 40)
	}
	return statusStyles[status].Render(label)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

package book

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"picturebook/internal/failure"
)

// Script is the structured payload a provider returns for a brief, before
// it becomes a Document.
type Script struct {
	Title           string        `json:"title"`
	Introduction    string        `json:"introduction"`
	CharacterDesign string        `json:"characterDesign"`
	CoverPrompt     string        `json:"coverPrompt"`
	Frames          []ScriptFrame `json:"frames"`
}

type ScriptFrame struct {
	ID               any    `json:"id,omitempty"`
	StoryText        string `json:"storyText"`
	SceneDescription string `json:"sceneDescription"`
}

// Assemble validates a script and turns it into a fresh Document. Frame ids
// are always generated here; ids sent by the model are ignored.
func Assemble(brief Brief, script *Script) (Document, error) {
	if script == nil {
		return Document{}, failure.Newf(failure.Parse, "assemble document", "empty script")
	}

	missing := missingFields(script)
	if len(missing) > 0 {
		return Document{}, failure.Newf(failure.Parse, "assemble document", "script is missing %s", strings.Join(missing, ", "))
	}

	title := strings.TrimSpace(script.Title)
	if title == "" {
		title = brief.Title
	}

	doc := Document{
		ID:              uuid.NewString(),
		Title:           title,
		Introduction:    strings.TrimSpace(script.Introduction),
		CharacterDesign: strings.TrimSpace(script.CharacterDesign),
		CoverPrompt:     strings.TrimSpace(script.CoverPrompt),
		StylePrompt:     brief.StylePrompt,
		VisualAnchor:    brief.VisualAnchor,
		Cover:           Cover{AspectRatio: Landscape},
		Frames:          make([]Frame, len(script.Frames)),
	}
	for i, f := range script.Frames {
		doc.Frames[i] = Frame{
			ID:               uuid.NewString(),
			StoryText:        strings.TrimSpace(f.StoryText),
			SceneDescription: strings.TrimSpace(f.SceneDescription),
		}
	}
	return doc, nil
}

func missingFields(s *Script) []string {
	var missing []string
	fields := []struct{ name, value string }{
		{"introduction", s.Introduction},
		{"characterDesign", s.CharacterDesign},
		{"coverPrompt", s.CoverPrompt},
	}
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(s.Frames) == 0 {
		missing = append(missing, "frames")
	}
	for i, f := range s.Frames {
		if strings.TrimSpace(f.StoryText) == "" {
			missing = append(missing, fmt.Sprintf("frames[%d].storyText", i))
		}
		if strings.TrimSpace(f.SceneDescription) == "" {
			missing = append(missing, fmt.Sprintf("frames[%d].sceneDescription", i))
		}
	}
	return missing
}

package book

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	MinWordCount     = 200
	MaxWordCount     = 2000
	DefaultWordCount = 800
	DefaultStyle     = "Warm, hand-drawn digital watercolor children's book style"
)

type AspectRatio string

const (
	Landscape AspectRatio = "16:9"
	Portrait  AspectRatio = "9:16"
)

func (a AspectRatio) Validate() error {
	switch a {
	case Landscape, Portrait:
		return nil
	default:
		return fmt.Errorf("unsupported aspect ratio %q", string(a))
	}
}

// Brief is what the author asks for before anything is generated.
type Brief struct {
	Title        string
	Theme        string
	WordCount    int
	VisualAnchor string
	StylePrompt  string
	Introduction string
}

func (b Brief) Ready() bool {
	return strings.TrimSpace(b.Title) != ""
}

// Normalize trims text fields, clamps the word count and fills in the
// default style.
func (b Brief) Normalize() Brief {
	b.Title = strings.TrimSpace(b.Title)
	b.Theme = strings.TrimSpace(b.Theme)
	b.VisualAnchor = strings.TrimSpace(b.VisualAnchor)
	b.StylePrompt = strings.TrimSpace(b.StylePrompt)
	b.Introduction = strings.TrimSpace(b.Introduction)

	switch {
	case b.WordCount == 0:
		b.WordCount = DefaultWordCount
	case b.WordCount < MinWordCount:
		b.WordCount = MinWordCount
	case b.WordCount > MaxWordCount:
		b.WordCount = MaxWordCount
	}
	if b.StylePrompt == "" {
		b.StylePrompt = DefaultStyle
	}
	return b
}

type Image struct {
	Data     []byte
	MIMEType string
}

func (i *Image) DataURL() string {
	if i == nil {
		return ""
	}
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

type Status int

const (
	Idle Status = iota
	InFlight
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case InFlight:
		return "in_flight"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

type Frame struct {
	ID               string
	StoryText        string
	SceneDescription string
	Image            *Image
	Status           Status
	Error            string
}

type Cover struct {
	Image       *Image
	AspectRatio AspectRatio
	Status      Status
	Error       string
}

// Document is one generated book. Values are treated as immutable: every
// change goes through a delta that returns a new Document.
type Document struct {
	ID              string
	Title           string
	Introduction    string
	CharacterDesign string
	CoverPrompt     string
	StylePrompt     string
	VisualAnchor    string
	Cover           Cover
	Frames          []Frame
}

func (d Document) Frame(id string) (Frame, bool) {
	for _, f := range d.Frames {
		if f.ID == id {
			return f, true
		}
	}
	return Frame{}, false
}

func (d Document) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, f := range d.Frames {
		counts[f.Status]++
	}
	return counts
}

func (d Document) Validate() error {
	if len(d.Frames) == 0 {
		return errors.New("document has no frames")
	}
	seen := make(map[string]struct{}, len(d.Frames))
	for i, f := range d.Frames {
		if f.ID == "" {
			return fmt.Errorf("frame %d has no id", i)
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("duplicate frame id %s", f.ID)
		}
		seen[f.ID] = struct{}{}
		if f.Status == InFlight && f.Image != nil {
			return fmt.Errorf("frame %s holds an image while in flight", f.ID)
		}
	}
	if d.Cover.Status == InFlight && d.Cover.Image != nil {
		return errors.New("cover holds an image while in flight")
	}
	return nil
}

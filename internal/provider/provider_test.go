package provider

import (
	"strings"
	"testing"

	"picturebook/internal/failure"
)

func TestDecodeScript(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantErr    bool
		wantFrames int
	}{
		{
			name:       "plainJSON",
			raw:        `{"title":"Kite","introduction":"i","characterDesign":"c","coverPrompt":"p","frames":[{"id":1,"storyText":"s","sceneDescription":"d"}]}`,
			wantFrames: 1,
		},
		{
			name:       "fencedJSON",
			raw:        "```json\n{\"title\":\"Kite\",\"frames\":[{\"id\":\"a\"},{\"id\":\"b\"}]}\n```",
			wantFrames: 2,
		},
		{
			name:    "notJSON",
			raw:     "Once upon a time",
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := DecodeScript(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeScript() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if failure.Classify(err) != failure.Parse {
					t.Errorf("kind = %v, want parse", failure.Classify(err))
				}
				return
			}
			if len(script.Frames) != tt.wantFrames {
				t.Errorf("len(Frames) = %d, want %d", len(script.Frames), tt.wantFrames)
			}
		})
	}
}

func TestNormalizeStyle(t *testing.T) {
	long := strings.Repeat("soft ", 80)

	tests := []struct {
		name  string
		in    string
		want  string
		words int
	}{
		{name: "empty", in: "  \n", want: DefaultStyle},
		{name: "trimmed", in: "  soft pastel watercolor  \n", want: "soft pastel watercolor"},
		{name: "quoted", in: `"flat vector, bold outlines"`, want: "flat vector, bold outlines"},
		{name: "capped", in: long, words: maxStyleWords},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeStyle(tt.in)
			if tt.want != "" && got != tt.want {
				t.Errorf("NormalizeStyle() = %q, want %q", got, tt.want)
			}
			if tt.words > 0 && len(strings.Fields(got)) != tt.words {
				t.Errorf("word count = %d, want %d", len(strings.Fields(got)), tt.words)
			}
		})
	}
}

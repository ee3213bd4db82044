package ark

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"picturebook/internal/book"
	"picturebook/internal/failure"
	"picturebook/internal/provider"
	"picturebook/pkg/httputil"
)

const testKey = "ark-test-key-0123456789abcdef"

func chatReply(content string) string {
	resp := map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

type capture struct {
	path   string
	auth   string
	body   map[string]any
	status int
	reply  string
}

func newTestClient(t *testing.T, c *capture) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		c.path = r.URL.Path
		c.auth = r.Header.Get("Authorization")
		_ = json.Unmarshal(raw, &c.body)

		status := c.status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(c.reply))
	}))
	t.Cleanup(server.Close)

	return NewClient(Config{
		BaseURL:        server.URL + "/api/v3",
		TextEndpoint:   "ep-text",
		VisionEndpoint: "ep-vision",
		ImageEndpoint:  "ep-image",
		HTTPClient:     httputil.NewRetryClient(server.Client(), httputil.RetryConfig{MaxRetries: 1}),
	}, func() string { return testKey }, nil)
}

func TestGenerateScript(t *testing.T) {
	script := `{"title":"The Lost Kite","introduction":"i","characterDesign":"c","coverPrompt":"p","frames":[{"id":1,"storyText":"s","sceneDescription":"d"}]}`
	c := &capture{reply: chatReply(script)}
	client := newTestClient(t, c)

	got, err := client.GenerateScript(context.Background(), book.Brief{Title: "The Lost Kite", WordCount: 400})
	if err != nil {
		t.Fatalf("GenerateScript() error = %v", err)
	}
	if got.Title != "The Lost Kite" || len(got.Frames) != 1 {
		t.Errorf("script = %+v", got)
	}

	if c.path != "/api/v3/chat/completions" {
		t.Errorf("path = %q", c.path)
	}
	if c.auth != "Bearer "+testKey {
		t.Errorf("Authorization = %q", c.auth)
	}
	if c.body["model"] != "ep-text" {
		t.Errorf("model = %v, want ep-text", c.body["model"])
	}
	format, _ := c.body["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("response_format = %v", c.body["response_format"])
	}
}

func TestGenerateScriptMalformed(t *testing.T) {
	c := &capture{reply: chatReply("{not json")}
	client := newTestClient(t, c)

	_, err := client.GenerateScript(context.Background(), book.Brief{Title: "x"})
	if failure.Classify(err) != failure.Parse {
		t.Errorf("kind = %v, want parse", failure.Classify(err))
	}
}

func TestAnalyzeStyle(t *testing.T) {
	c := &capture{reply: chatReply("Bold flat vector shapes with bright primaries")}
	client := newTestClient(t, c)

	got, err := client.AnalyzeStyle(context.Background(), []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("AnalyzeStyle() error = %v", err)
	}
	if got != "Bold flat vector shapes with bright primaries" {
		t.Errorf("AnalyzeStyle() = %q", got)
	}
	if c.body["model"] != "ep-vision" {
		t.Errorf("model = %v, want ep-vision", c.body["model"])
	}
	raw, _ := json.Marshal(c.body["messages"])
	if !strings.Contains(string(raw), "data:image/png;base64,") {
		t.Error("request should carry the image as a data url")
	}
}

func TestGenerateIllustration(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nrest")

	tests := []struct {
		name     string
		ratio    book.AspectRatio
		wantSize string
	}{
		{name: "landscape", ratio: book.Landscape, wantSize: "1280x720"},
		{name: "portrait", ratio: book.Portrait, wantSize: "720x1280"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, _ := json.Marshal(map[string]any{
				"created": 1,
				"data":    []any{map[string]any{"b64_json": base64.StdEncoding.EncodeToString(png)}},
			})
			c := &capture{reply: string(reply)}
			client := newTestClient(t, c)

			img, err := client.GenerateIllustration(context.Background(), provider.IllustrationRequest{
				Prompt:      "Kite in a tree",
				StylePrompt: "watercolor",
				AspectRatio: tt.ratio,
			})
			if err != nil {
				t.Fatalf("GenerateIllustration() error = %v", err)
			}
			if img.MIMEType != "image/png" || string(img.Data) != string(png) {
				t.Errorf("image = %+v", img)
			}
			if c.path != "/api/v3/images/generations" {
				t.Errorf("path = %q", c.path)
			}
			if c.body["size"] != tt.wantSize {
				t.Errorf("size = %v, want %s", c.body["size"], tt.wantSize)
			}
			if c.body["response_format"] != "b64_json" {
				t.Errorf("response_format = %v", c.body["response_format"])
			}
			if prompt, _ := c.body["prompt"].(string); !strings.HasPrefix(prompt, "Kite in a tree. Style: watercolor.") {
				t.Errorf("prompt = %q", prompt)
			}
		})
	}
}

func TestGenerateIllustrationEmptyData(t *testing.T) {
	c := &capture{reply: `{"created":1,"data":[]}`}
	client := newTestClient(t, c)

	_, err := client.GenerateIllustration(context.Background(), provider.IllustrationRequest{Prompt: "x"})
	if failure.Classify(err) != failure.Provider {
		t.Errorf("kind = %v, want provider", failure.Classify(err))
	}
}

func TestRejectedKey(t *testing.T) {
	c := &capture{
		status: http.StatusUnauthorized,
		reply:  `{"error":{"code":"AuthenticationError","message":"the api key is invalid","type":"Unauthorized"}}`,
	}
	client := newTestClient(t, c)

	_, err := client.GenerateScript(context.Background(), book.Brief{Title: "x"})
	if failure.Classify(err) != failure.CredentialRejected {
		t.Errorf("kind = %v, want credential_rejected (err = %v)", failure.Classify(err), err)
	}
}

func TestMissingKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"}, func() string { return "" }, nil)

	_, err := client.GenerateIllustration(context.Background(), provider.IllustrationRequest{Prompt: "x"})
	if failure.Classify(err) != failure.MissingCredential {
		t.Errorf("kind = %v, want missing_credential", failure.Classify(err))
	}
}

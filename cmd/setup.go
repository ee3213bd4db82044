package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"picturebook/pkg/config"
)

const (
	envPath    = ".env"
	configPath = "config.yaml"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for Picturebook",
	Long:  `Choose a provider, store its API key, create the output directory and optionally configure Google Cloud Storage uploads.`,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("📚 Picturebook Setup"))

	env, err := existingEnv()
	if err != nil {
		return err
	}

	backend, err := chooseProvider()
	if err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"Creating directories", func() error { return createDirectories(cmd.Context()) }},
		{"Configuring provider", func() error { return writeProviderConfig(backend) }},
		{"Configuring API key", func() error { return configureKey(env, backend) }},
		{"Configuring uploads", func() error { return configureGCP(env) }},
		{"Writing environment", func() error { return writeEnvFile(env) }},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	printNextSteps()
	return nil
}

// existingEnv returns the current .env values so that setup only replaces
// what the user changes.
func existingEnv() (map[string]string, error) {
	if _, err := os.Stat(envPath); err != nil {
		return make(map[string]string), nil
	}

	var keep bool
	if err := huh.NewConfirm().
		Title("Found existing .env file").
		Description("Keep values that are not changed below?").
		Value(&keep).
		Run(); err != nil {
		return nil, err
	}
	if !keep {
		return make(map[string]string), nil
	}

	env, err := godotenv.Read(envPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", envPath, err)
	}
	return env, nil
}

func chooseProvider() (string, error) {
	backend := config.ProviderGemini
	err := huh.NewSelect[string]().
		Title("Image provider").
		Options(
			huh.NewOption("Google Gemini", config.ProviderGemini),
			huh.NewOption("Volcengine Ark (Doubao)", config.ProviderArk),
		).
		Value(&backend).
		Run()
	return backend, err
}

func createDirectories(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	dir := "output"
	if err == nil {
		dir = cfg.Output.Dir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	fmt.Println(successStyle.Render("✓ Created " + dir))
	return nil
}

// writeProviderConfig records the provider in config.yaml, keeping every
// other setting already in the file.
func writeProviderConfig(backend string) error {
	doc := make(map[string]any)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", configPath, err)
		}
	}
	doc["provider"] = backend

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ Provider set to " + backend))
	return nil
}

func configureKey(env map[string]string, backend string) error {
	name, help := "GEMINI_API_KEY", "https://aistudio.google.com/apikey"
	if backend == config.ProviderArk {
		name, help = "ARK_API_KEY", "https://console.volcengine.com/ark"
	}

	key := env[name]
	if err := huh.NewInput().
		Title(name).
		Description(help).
		EchoMode(huh.EchoModePassword).
		Value(&key).
		Validate(required(name)).
		Run(); err != nil {
		return err
	}
	env[name] = strings.TrimSpace(key)
	return nil
}

func configureGCP(env map[string]string) error {
	var setup bool
	if err := huh.NewConfirm().
		Title("Upload decks to Google Cloud Storage?").
		Description("Optional. Requires a bucket and application default credentials").
		Value(&setup).
		Run(); err != nil || !setup {
		return err
	}

	if project, err := gcloud("config", "get-value", "project"); err == nil && project != "" {
		env["GOOGLE_CLOUD_PROJECT"] = project
		if err := runWithSpinner("Enabling Cloud Storage", func() error {
			_, err := gcloud("services", "enable", "storage.googleapis.com", "--project", project)
			return err
		}); err != nil {
			fmt.Println(warnStyle.Render(fmt.Sprintf("Could not enable Cloud Storage: %v", err)))
		}
	} else {
		fmt.Println(warnStyle.Render("No gcloud project found. Install the SDK from https://cloud.google.com/sdk/docs/install or enable Cloud Storage by hand."))
	}

	bucket, creds := env["GCS_BUCKET"], env["GOOGLE_APPLICATION_CREDENTIALS"]
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bucket name").
				Value(&bucket).
				Validate(required("Bucket name")),
			huh.NewInput().
				Title("Service account key file").
				Description("Leave empty to use application default credentials").
				Value(&creds),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	env["GCS_BUCKET"] = strings.TrimSpace(bucket)
	if creds = strings.TrimSpace(creds); creds != "" {
		env["GOOGLE_APPLICATION_CREDENTIALS"] = creds
	}
	return nil
}

func writeEnvFile(env map[string]string) error {
	for key, val := range env {
		if val == "" {
			delete(env, key)
		}
	}
	if err := godotenv.Write(env, envPath); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ Wrote " + envPath))
	return nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	fmt.Println("  1. Run: picturebook studio")
	fmt.Println("  2. Or:  picturebook generate -t \"The Lost Kite\" --illustrate --open")
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// gcloud runs the gcloud CLI and returns its trimmed stdout.
func gcloud(args ...string) (string, error) {
	if _, err := exec.LookPath("gcloud"); err != nil {
		return "", err
	}
	var stdout, stderr bytes.Buffer
	c := exec.Command("gcloud", args...)
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("gcloud %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

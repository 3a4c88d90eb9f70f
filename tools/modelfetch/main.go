// modelfetch downloads the classifier model artifact once and exits.
// Usage: MODEL_URL=https://... go run ./tools/modelfetch
package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"
)

const modelDir = "model"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "modelfetch: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	modelURL := os.Getenv("MODEL_URL")
	if modelURL == "" {
		return fmt.Errorf("MODEL_URL environment variable is not set; provide a direct download URL for the model file")
	}

	parsed, err := url.Parse(modelURL)
	if err != nil {
		return fmt.Errorf("invalid MODEL_URL: %w", err)
	}
	filename := path.Base(parsed.Path)
	if filename == "" || filename == "." || filename == "/" {
		filename = "model.h5"
	}

	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return err
	}
	destination := filepath.Join(modelDir, filename)

	fmt.Printf("Downloading model from %s\n", modelURL)
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(modelURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destination)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Printf("Model saved to %s\n", destination)
	return nil
}

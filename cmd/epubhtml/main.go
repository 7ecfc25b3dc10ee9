// Command epubhtml converts an unpacked EPUB's chapter files into one HTML
// document and a JSON table of contents. It takes no flags; see
// internal/config for the environment variables it reads.
package main

import (
	"log/slog"
	"os"

	"github.com/dgallion1/epubhtml/internal/config"
	"github.com/dgallion1/epubhtml/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Per-chapter failures are logged inside Run and do not change the exit code.
	if _, err := pipeline.Run(cfg, log); err != nil {
		log.Error("conversion failed", "error", err)
		os.Exit(1)
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dgallion1/epubhtml/internal/parser"
	"github.com/joho/godotenv"
)

// Boilerplate strip modes.
const (
	StripStructural = "structural"
	StripRegex      = "regex"
)

type Config struct {
	// Input
	InputDir       string
	FilenameMarker string
	Extension      string

	// Output
	OutputHTMLPath  string
	OutputIndexPath string

	// Boilerplate removal
	SectionMarker string
	DivMarker     string
	StripMode     string

	// Document metadata. For an .epub input the archive's own title and
	// author are used unless BOOK_TITLE / BOOK_AUTHOR are set.
	BookTitle     string
	BookAuthor    string
	BookTitleSet  bool
	BookAuthorSet bool

	// PDF
	PDFFallbackPdftotext bool

	// Preview server
	Port             string
	RebuildAPIKey    string
	RebuildPerMinute int // per client IP; 0 disables the limit
}

// Default returns the stock configuration for the bundled Moby-Dick EPUB.
func Default() Config {
	return Config{
		InputDir:       "moby-dick/OEBPS",
		FilenameMarker: "h-",
		Extension:      ".xhtml",

		OutputHTMLPath:  "output/content.html",
		OutputIndexPath: "output/structure.json",

		SectionMarker: "pg-boilerplate",
		DivMarker:     "pg-",
		StripMode:     StripStructural,

		BookTitle:  "Moby Dick; Or, The Whale",
		BookAuthor: "Herman Melville",

		PDFFallbackPdftotext: true,

		Port:             "8090",
		RebuildPerMinute: 6,
	}
}

// Load overlays environment variables (and an optional .env file) on Default.
func Load() Config {
	// Missing .env is fine.
	_ = godotenv.Load()

	d := Default()
	return Config{
		InputDir:       envOr("EPUB_INPUT_DIR", d.InputDir),
		FilenameMarker: envOr("FILENAME_MARKER", d.FilenameMarker),
		Extension:      envOr("SOURCE_EXTENSION", d.Extension),

		OutputHTMLPath:  envOr("OUTPUT_HTML_PATH", d.OutputHTMLPath),
		OutputIndexPath: envOr("OUTPUT_INDEX_PATH", d.OutputIndexPath),

		SectionMarker: envOr("BOILERPLATE_SECTION_MARKER", d.SectionMarker),
		DivMarker:     envOr("BOILERPLATE_DIV_MARKER", d.DivMarker),
		StripMode:     envOr("BOILERPLATE_STRIP_MODE", d.StripMode),

		BookTitle:     envOr("BOOK_TITLE", d.BookTitle),
		BookAuthor:    envOr("BOOK_AUTHOR", d.BookAuthor),
		BookTitleSet:  os.Getenv("BOOK_TITLE") != "",
		BookAuthorSet: os.Getenv("BOOK_AUTHOR") != "",

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", d.PDFFallbackPdftotext),

		Port:             envOr("PORT", d.Port),
		RebuildAPIKey:    os.Getenv("REBUILD_API_KEY"),
		RebuildPerMinute: envInt("REBUILD_PER_MINUTE", d.RebuildPerMinute),
	}
}

func (c Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input directory is required")
	}
	if c.OutputHTMLPath == "" || c.OutputIndexPath == "" {
		return fmt.Errorf("both output paths are required")
	}
	if c.OutputHTMLPath == c.OutputIndexPath {
		return fmt.Errorf("html and index output paths must differ: %s", c.OutputHTMLPath)
	}
	if c.Extension == "" {
		return fmt.Errorf("source extension is required")
	}
	if !parser.IsSupportedExtension("source" + c.Extension) {
		return fmt.Errorf("unsupported source extension: %q", c.Extension)
	}
	if c.SectionMarker == "" || c.DivMarker == "" {
		return fmt.Errorf("boilerplate markers must not be empty")
	}
	if c.RebuildPerMinute < 0 {
		return fmt.Errorf("rebuild rate limit must not be negative: %d", c.RebuildPerMinute)
	}
	switch c.StripMode {
	case StripStructural, StripRegex:
	default:
		return fmt.Errorf("unknown boilerplate strip mode: %q", c.StripMode)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

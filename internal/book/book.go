package book

import (
	"fmt"
	"io"
	"os"
)

// IndexType is the structure index discriminator for EPUB-derived books.
const IndexType = "epub"

// MaxTitleLen is the maximum chapter title length in runes.
const MaxTitleLen = 100

// SourceFile is one chapter's raw markup, on disk or inside an archive.
type SourceFile struct {
	Path string // Full path; archive entries use "<archive>!/<entry>"
	Name string // Base name, used for filtering and ordering

	// Opener reads the source when it is not a plain file at Path.
	Opener func() (io.ReadCloser, error)
}

// Open returns the source's bytes.
func (s SourceFile) Open() (io.ReadCloser, error) {
	if s.Opener != nil {
		return s.Opener()
	}
	return os.Open(s.Path)
}

// Chapter is a cleaned chapter ready for assembly.
type Chapter struct {
	ID      string // "chapter-<order>"
	Title   string // At most MaxTitleLen runes
	Content string // Cleaned markup fragment, inserted verbatim
	Order   int    // 1-based rank in the sorted source listing
}

// Summary is the table-of-contents projection of a Chapter.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
}

// StructureIndex is the JSON table of contents written next to the document.
type StructureIndex struct {
	Type     string    `json:"type"`
	Chapters []Summary `json:"chapters"`
}

// Meta is the document metadata rendered into the HTML head.
type Meta struct {
	Title  string
	Author string
}

// ChapterID returns the identifier for the chapter at position.
func ChapterID(position int) string {
	return fmt.Sprintf("chapter-%d", position)
}

// Summary projects the chapter to its index entry.
func (c Chapter) Summary() Summary {
	return Summary{ID: c.ID, Title: c.Title, Order: c.Order}
}

// Package epub reads chapter sources and book metadata straight from a packed
// .epub archive: container.xml locates the package document, whose spine gives
// the reading order.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgallion1/epubhtml/internal/book"
)

var (
	// ErrInvalidArchive is returned when the archive has no usable package document.
	ErrInvalidArchive = errors.New("epub: invalid archive")

	// ErrEntryNotFound is returned when a spine item has no matching zip entry.
	ErrEntryNotFound = errors.New("epub: entry not found in archive")
)

const (
	containerPath    = "META-INF/container.xml"
	packageMediaType = "application/oebps-package+xml"

	// maxEntrySize bounds a single decompressed entry.
	maxEntrySize = 64 << 20
)

type container struct {
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles   []string `xml:"http://purl.org/dc/elements/1.1/ title"`
		Creators []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID   string `xml:"id,attr"`
			Href string `xml:"href,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// Archive is an opened .epub file. Close it once every source has been read.
type Archive struct {
	path  string
	zr    *zip.ReadCloser
	files map[string]*zip.File
	meta  book.Meta
	spine []string // entry names in reading order
}

// IsArchive reports whether p names an existing regular file with an .epub extension.
func IsArchive(p string) bool {
	if !strings.EqualFold(filepath.Ext(p), ".epub") {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Open reads the archive's container and package documents.
func Open(p string) (*Archive, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %w", p, err)
	}
	a := &Archive{path: p, zr: zr, files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		a.files[f.Name] = f
	}
	if err := a.load(); err != nil {
		zr.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) Close() error {
	return a.zr.Close()
}

// Meta returns the first dc:title and dc:creator of the package document.
// Either may be empty.
func (a *Archive) Meta() book.Meta {
	return a.meta
}

// Spine returns the entry names of the spine documents in reading order.
func (a *Archive) Spine() []string {
	return append([]string(nil), a.spine...)
}

func (a *Archive) load() error {
	opfPath, err := a.packagePath()
	if err != nil {
		return err
	}
	data, err := a.read(opfPath)
	if err != nil {
		return fmt.Errorf("epub: read package document: %w", err)
	}
	var pkg opfPackage
	if err := decodeXML(data, &pkg); err != nil {
		return fmt.Errorf("epub: parse package document: %w", err)
	}

	a.meta = book.Meta{
		Title:  firstNonEmpty(pkg.Metadata.Titles),
		Author: firstNonEmpty(pkg.Metadata.Creators),
	}

	hrefs := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		hrefs[item.ID] = item.Href
	}
	base := path.Dir(opfPath)
	seen := make(map[string]bool)
	for _, ref := range pkg.Spine.ItemRefs {
		href := hrefs[ref.IDRef]
		if href == "" {
			continue
		}
		name := resolveHref(base, href)
		if seen[name] {
			continue
		}
		seen[name] = true
		a.spine = append(a.spine, name)
	}
	return nil
}

// packagePath finds the package document through container.xml, preferring
// the rootfile with the OPF media type.
func (a *Archive) packagePath() (string, error) {
	data, err := a.read(containerPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	var c container
	if err := decodeXML(data, &c); err != nil {
		return "", fmt.Errorf("epub: parse container.xml: %w", err)
	}
	fallback := ""
	for _, rf := range c.RootFiles {
		full := strings.TrimSpace(rf.FullPath)
		if full == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.MediaType), packageMediaType) {
			return full, nil
		}
		if fallback == "" {
			fallback = full
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("%w: container.xml names no package document", ErrInvalidArchive)
	}
	return fallback, nil
}

func (a *Archive) lookup(name string) *zip.File {
	if f, ok := a.files[name]; ok {
		return f
	}
	for n, f := range a.files {
		if strings.EqualFold(n, name) {
			return f
		}
	}
	return nil
}

func (a *Archive) open(name string) (io.ReadCloser, error) {
	f := a.lookup(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	if f.UncompressedSize64 > maxEntrySize {
		return nil, fmt.Errorf("epub: entry %s too large: %d bytes", name, f.UncompressedSize64)
	}
	return f.Open()
}

func (a *Archive) read(name string) ([]byte, error) {
	rc, err := a.open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("epub: entry %s too large", name)
	}
	return data, nil
}

// decodeXML unmarshals data, accepting HTML named entities such as &mdash;
// that hand-made package documents often contain.
func decodeXML(data []byte, v any) error {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Entity = xml.HTMLEntity
	return d.Decode(v)
}

// resolveHref turns a manifest href into a zip entry name relative to the
// package document's directory.
func resolveHref(base, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return strings.TrimPrefix(path.Join(base, href), "/")
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

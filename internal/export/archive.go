package export

import (
	"archive/zip"
	"compress/flate"
	"encoding/json"
	"io"
)

// CompressionLevel is the deflate level used for every entry.
const CompressionLevel = 6

// Archive entry names.
const (
	DataEntry        = "data.json"
	ManifestEntry    = "manifest.json"
	AttachmentsEntry = "attachments/"
)

// archiveWriter wraps zip.Writer with the entry helpers the engine needs.
type archiveWriter struct {
	zw    *zip.Writer
	names map[string]bool
}

func newArchiveWriter(w io.Writer) *archiveWriter {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, CompressionLevel)
	})
	return &archiveWriter{zw: zw, names: make(map[string]bool)}
}

// has reports whether an entry was already written.
func (a *archiveWriter) has(name string) bool { return a.names[name] }

func (a *archiveWriter) create(name string) (io.Writer, error) {
	a.names[name] = true
	return a.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
}

// writeJSON stores v indented with two spaces.
func (a *archiveWriter) writeJSON(name string, v any) error {
	w, err := a.create(name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// dir adds a directory entry.
func (a *archiveWriter) dir(name string) error {
	if a.names[name] {
		return nil
	}
	a.names[name] = true
	_, err := a.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	return err
}

// addFile copies r into the attachments folder under fileName.
func (a *archiveWriter) addFile(fileName string, r io.Reader) error {
	w, err := a.create(AttachmentsEntry + fileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}

func (a *archiveWriter) Close() error { return a.zw.Close() }

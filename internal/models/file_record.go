package models

import (
	"bytes"
	"io"
)

// PlaceholderPreview is shown until a real preview has been read or fetched.
const PlaceholderPreview = "images/loading.jpeg"

// Source is the raw handle of a selected file.
type Source interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// FileRecord is one tracked file. A record that is not ServerPresent always
// carries its Source; uploaded records may have it evicted.
type FileRecord struct {
	ID            string `json:"id"`
	Source        Source `json:"-"`
	Name          string `json:"file_name"`
	Size          int64  `json:"file_size"`
	Preview       string `json:"preview"`
	ServerPresent bool   `json:"in_server"`
}

// FilePatch holds the fields to merge into an existing record. Nil fields are left untouched.
type FilePatch struct {
	Name          *string
	Preview       *string
	ServerPresent *bool
}

// Apply merges the patch into rec.
func (p FilePatch) Apply(rec *FileRecord) {
	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.Preview != nil {
		rec.Preview = *p.Preview
	}
	if p.ServerPresent != nil {
		rec.ServerPresent = *p.ServerPresent
	}
}

// WithPreview is a shorthand for a patch that only replaces the preview.
func WithPreview(preview string) FilePatch {
	return FilePatch{Preview: &preview}
}

// BytesSource is a Source backed by an in-memory buffer.
type BytesSource struct {
	FileName string
	Data     []byte
}

func (b BytesSource) Name() string { return b.FileName }

func (b BytesSource) Size() int64 { return int64(len(b.Data)) }

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

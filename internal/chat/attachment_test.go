package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveAttachmentURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://api.example.com/", "/api/uploads/f.png", "https://api.example.com/uploads/f.png"},
		{"https://api.example.com", "/api/uploads/f.png", "https://api.example.com/uploads/f.png"},
		{"https://api.example.com/", "uploads/f.png", "https://api.example.com/uploads/f.png"},
		{"https://api.example.com", "/uploads/f.png", "https://api.example.com/uploads/f.png"},
		{"https://example.com/api/", "/api/uploads/f.png", "https://example.com/api/uploads/f.png"},
		{"https://example.com/api", "api/uploads/a b.pdf", "https://example.com/api/uploads/a b.pdf"},
		{"https://example.com//", "//api//uploads//f.png", "https://example.com/uploads/f.png"},
		{"http://localhost:8080", "/api/apidocs/readme.txt", "http://localhost:8080/apidocs/readme.txt"},
	}

	for _, tt := range tests {
		got := ResolveAttachmentURL(tt.base, tt.ref)
		assert.Equal(t, tt.want, got, "base=%q ref=%q", tt.base, tt.ref)
		rest := got[strings.Index(got, "://")+3:]
		assert.NotContains(t, rest, "//")
	}
}

func TestAttachmentKind(t *testing.T) {
	assert.Equal(t, FileImage, AttachmentKind("image/png"))
	assert.Equal(t, FileImage, AttachmentKind("IMAGE/JPEG"))
	assert.Equal(t, FilePDF, AttachmentKind("application/pdf"))
	assert.Equal(t, FileText, AttachmentKind("text/plain; charset=utf-8"))
	assert.Equal(t, FileGeneric, AttachmentKind("application/zip"))
	assert.Equal(t, FileGeneric, AttachmentKind(""))
}

func TestAttachmentLabel(t *testing.T) {
	assert.Equal(t, "PNG", AttachmentLabel("/api/uploads/f.png"))
	assert.Equal(t, "GZ", AttachmentLabel("/api/uploads/archive.tar.gz"))
	assert.Equal(t, "README", AttachmentLabel("/api/uploads/readme"))
	assert.Equal(t, "FILE", AttachmentLabel(""))
	assert.Equal(t, "FILE", AttachmentLabel("/api/uploads/trailing."))
}

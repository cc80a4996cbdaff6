package chat

import (
	"path"
	"strings"
)

// apiPrefix is what the store puts in front of upload paths; the configured
// base URL already points at the API root.
const apiPrefix = "api/"

type FileKind string

const (
	FileImage   FileKind = "image"
	FilePDF     FileKind = "pdf"
	FileText    FileKind = "text"
	FileGeneric FileKind = "file"
)

// ResolveAttachmentURL joins an attachment reference onto the API base URL
// with exactly one slash between them.
func ResolveAttachmentURL(base, ref string) string {
	clean := strings.TrimLeft(ref, "/")
	clean = strings.TrimPrefix(clean, apiPrefix)
	clean = strings.TrimLeft(clean, "/")
	for strings.Contains(clean, "//") {
		clean = strings.ReplaceAll(clean, "//", "/")
	}
	return strings.TrimRight(base, "/") + "/" + clean
}

// AttachmentKind picks a rendering strategy from the MIME type.
func AttachmentKind(contentType string) FileKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return FileImage
	case strings.HasPrefix(ct, "application/pdf"):
		return FilePDF
	case strings.HasPrefix(ct, "text/"):
		return FileText
	default:
		return FileGeneric
	}
}

// AttachmentLabel is the upper-cased extension of the referenced file, or FILE.
func AttachmentLabel(ref string) string {
	name := path.Base(strings.TrimRight(ref, "/"))
	if name == "." || name == "/" || name == "" {
		return "FILE"
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "FILE"
	}
	return strings.ToUpper(name)
}

package validation

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// sniffLen is how many leading bytes http.DetectContentType inspects.
const sniffLen = 512

// CheckUpload rejects uploads before any I/O happens: empty names, empty
// bodies and bodies over the configured limit.
func CheckUpload(name string, size, maxSize int64) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("file name is required")
	}
	if size <= 0 {
		return fmt.Errorf("file is empty")
	}
	if maxSize > 0 && size > maxSize {
		return fmt.Errorf("file too large: maximum size is %d MB", maxSize/(1<<20))
	}
	return nil
}

// DetectMime resolves the media type of an upload. A declared type wins unless
// it is missing or generic, in which case the content is sniffed (magic
// numbers cannot be faked by a Content-Type header) with the extension as a
// tiebreak for types the sniffer cannot distinguish.
func DetectMime(name, declared string, head []byte) string {
	declared = strings.TrimSpace(strings.ToLower(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	detected := http.DetectContentType(head)
	if detected != "application/octet-stream" {
		return detected
	}

	byExt := extMimeTypes[strings.ToLower(filepath.Ext(name))]
	if byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

// extMimeTypes covers common media extensions the sniffer cannot identify
// from content alone.
var extMimeTypes = map[string]string{
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".heic": "image/heic",
}

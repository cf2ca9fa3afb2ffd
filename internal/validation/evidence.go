// evidence.go validates badge photo uploads before they are written to storage:
// file extension, declared content type, and size limit.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// MaxEvidenceSize is the maximum size for an evidence upload (10MB)
	MaxEvidenceSize = 10 * 1024 * 1024
)

// allowedEvidenceExtensions maps permitted file extensions to their expected
// content types.
var allowedEvidenceExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// ValidateEvidenceFile checks an uploaded evidence file's name, declared
// content type and size. The content type check is advisory (browsers set it);
// the extension allowlist is the hard gate.
func ValidateEvidenceFile(filename, contentType string, size int64) error {
	if filename == "" {
		return fmt.Errorf("file name cannot be empty")
	}

	// Uploaded names are used as storage path components.
	base := filepath.Base(filename)
	if base != filename || strings.Contains(filename, "..") {
		return fmt.Errorf("invalid file name: %s", filename)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	expectedType, ok := allowedEvidenceExtensions[ext]
	if !ok {
		return fmt.Errorf("unsupported file type: %s (allowed: jpg, jpeg, png, pdf)", ext)
	}

	if contentType != "" && !strings.HasPrefix(contentType, expectedType) {
		return fmt.Errorf("content type %s does not match file extension %s", contentType, ext)
	}

	if size <= 0 {
		return fmt.Errorf("file is empty")
	}
	if size > MaxEvidenceSize {
		return fmt.Errorf("file size exceeds maximum allowed size of %d bytes", MaxEvidenceSize)
	}

	return nil
}

package report

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// GenerateNodeID generates a stable ID for a test node from its hierarchical path.
// The ID is a truncated SHA256 hash of the path joined with ':'.
func GenerateNodeID(name string, parentNames []string) string {
	fullPath := make([]string, 0, len(parentNames)+1)
	fullPath = append(fullPath, parentNames...)
	fullPath = append(fullPath, name)
	return GenerateNodeIDFromPath(fullPath)
}

// GenerateNodeIDFromPath generates an ID from a complete path slice
func GenerateNodeIDFromPath(path []string) string {
	if len(path) == 0 {
		return ""
	}

	hash := sha256.Sum256([]byte(strings.Join(path, ":")))
	// First 16 bytes (32 hex chars)
	return hex.EncodeToString(hash[:16])
}

// BuildHierarchicalPath builds a display path with separators
func BuildHierarchicalPath(parts []string) string {
	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, " → ")
}

// TruncateForDisplay truncates text to maxLength, keeping the end visible
func TruncateForDisplay(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}

	if maxLength <= 3 {
		return "..."
	}

	endPart := text[len(text)-(maxLength-3):]
	// Prefer starting after a separator for cleaner truncation
	for i := 0; i < len(endPart) && i < 10; i++ {
		if endPart[i] == '/' || endPart[i] == '\\' {
			endPart = endPart[i+1:]
			break
		}
	}
	return "..." + endPart
}

package middlewares

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// PathSanitizer provides secure path sanitization utilities
type PathSanitizer struct {
	// Patterns that could indicate path traversal attempts
	dangerousPatterns []*regexp.Regexp
	// Characters to replace in filenames
	replacer *strings.Replacer
}

// NewPathSanitizer creates a new path sanitizer with security rules
func NewPathSanitizer() *PathSanitizer {
	return &PathSanitizer{
		dangerousPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\.\.`),                   // Directory traversal
			regexp.MustCompile(`^~`),                     // Home directory reference
			regexp.MustCompile(`(?i)^(con|prn|aux|nul)`), // Windows reserved names
			regexp.MustCompile(`[<>:"|?*]`),              // Invalid filename chars
		},
		replacer: strings.NewReplacer(
			"/", "_",
			"\\", "_",
			"..", "_",
			"~", "_",
			"$", "_",
			"`", "_",
			"|", "_",
			"<", "_",
			">", "_",
			":", "_",
			"\"", "_",
			"?", "_",
			"*", "_",
			"\x00", "_", // Null byte
		),
	}
}

// SanitizeFilename sanitizes a filename for safe file system operations
func (ps *PathSanitizer) SanitizeFilename(filename string) string {
	safe := ps.replacer.Replace(filename)

	// Limit filename length to prevent issues
	const maxLength = 255
	if len(safe) > maxLength {
		ext := filepath.Ext(safe)
		if len(ext) < maxLength {
			safe = safe[:maxLength-len(ext)] + ext
		} else {
			safe = safe[:maxLength]
		}
	}

	if safe == "" || safe == "." {
		safe = "unnamed"
	}

	return safe
}

// SanitizeStageName sanitizes a stage name for use in filenames
func (ps *PathSanitizer) SanitizeStageName(name string) string {
	// Stage names might contain special characters that are invalid in filenames
	return ps.SanitizeFilename(name)
}

// ValidateSaveFolder validates that a save folder path is safe to use
func (ps *PathSanitizer) ValidateSaveFolder(folder string) error {
	for _, pattern := range ps.dangerousPatterns {
		if pattern.MatchString(folder) {
			return fmt.Errorf("invalid save folder path: contains dangerous pattern")
		}
	}

	// Ensure it's not trying to write to system directories
	cleanPath := filepath.Clean(folder)
	systemDirs := []string{"/etc", "/bin", "/sbin", "/usr/bin", "/usr/sbin", "/sys", "/proc", "/dev"}
	for _, sysDir := range systemDirs {
		if strings.HasPrefix(cleanPath, sysDir) {
			return fmt.Errorf("invalid save folder: cannot write to system directory %s", sysDir)
		}
	}

	return nil
}

// Default sanitizer instance
var DefaultSanitizer = NewPathSanitizer()

// SanitizeFilename is a convenience function using the default sanitizer
func SanitizeFilename(filename string) string {
	return DefaultSanitizer.SanitizeFilename(filename)
}

// SanitizeStageName is a convenience function using the default sanitizer
func SanitizeStageName(name string) string {
	return DefaultSanitizer.SanitizeStageName(name)
}

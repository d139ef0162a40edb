package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateModuleName validates the name of an externalized module, such as
// "canvas", "node:fs", "@scope/pkg" or "lodash/fp".
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No relative or absolute paths
//   - No backslashes
//   - Maximum length of 256 characters
func ValidateModuleName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "module name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidName, "module name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "module name contains invalid control characters")
		}
	}

	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "/") {
		return New(ErrCodeInvalidName, "module name %q must not be a path", name)
	}

	if strings.Contains(name, "\\") || strings.Contains(name, "//") {
		return New(ErrCodeInvalidName, "module name %q contains invalid characters", name)
	}

	for _, seg := range strings.Split(name, "/") {
		if seg == "." || seg == ".." {
			return New(ErrCodeInvalidName, "module name %q contains path traversal", name)
		}
	}

	if !moduleNameRegex.MatchString(strings.TrimPrefix(name, "node:")) {
		return New(ErrCodeInvalidName, "invalid module name: %q", name)
	}

	return nil
}

// moduleNameRegex matches npm package names with an optional subpath.
var moduleNameRegex = regexp.MustCompile(`^(@[A-Za-z0-9-~][A-Za-z0-9-._~]*/)?[A-Za-z0-9-~][A-Za-z0-9-._~]*(/[A-Za-z0-9-._~]+)*$`)

// ValidateOutputFilename validates the artifact filename.
// It ensures the filename is a simple basename without path components.
func ValidateOutputFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidPath, "output filename cannot be empty")
	}

	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidPath, "output filename cannot contain path separators")
	}

	if filename == "." || filename == ".." {
		return New(ErrCodeInvalidPath, "output filename %q is not a file name", filename)
	}

	for _, r := range filename {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "output filename contains invalid characters")
		}
	}

	return nil
}

// ValidateEntryPath validates the entry path as written in configuration.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidateEntryPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "entry path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// libraryNameRegex matches a dotted chain of JavaScript identifiers.
var libraryNameRegex = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// ValidateLibraryName validates the global name that receives the entry
// module's exports, such as "hexin" or "window.hexin".
func ValidateLibraryName(name string) error {
	if !libraryNameRegex.MatchString(name) {
		return New(ErrCodeInvalidName, "invalid library name: %q", name)
	}
	return nil
}

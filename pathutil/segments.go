// Package pathutil splits absolute paths into the name segments used to key
// the snapshot hierarchy.
package pathutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath       = errors.New("empty path")
	ErrRelativePath    = errors.New("path is not absolute")
	ErrEmptySegment    = errors.New("path contains an empty segment")
	ErrMixedSeparators = errors.New("path mixes separators")
)

// Style selects the path syntax of a platform
type Style int

const (
	// UnixStyle paths start with '/' and split to a leading "" segment
	UnixStyle Style = iota
	// WindowsStyle paths start with a drive ("C:") which is the first segment
	WindowsStyle
)

// HostStyle returns the style of the running platform
func HostStyle() Style {
	if filepath.Separator == '\\' {
		return WindowsStyle
	}
	return UnixStyle
}

// Separator returns the style's path separator
func (s Style) Separator() string {
	if s == WindowsStyle {
		return `\`
	}
	return "/"
}

// Split splits an absolute path of the host style. See [SplitWith].
func Split(path string) ([]string, error) {
	return SplitWith(path, HostStyle())
}

// SplitWith splits an absolute path into its name segments.
//
// Unix paths keep the root marker as a leading empty segment:
//
//	"/"          -> [""]
//	"/etc/hosts" -> ["", "etc", "hosts"]
//
// Windows paths start with their drive:
//
//	`C:\foo` -> ["C:", "foo"]
//
// One trailing separator is ignored. Relative paths, doubled separators and
// (Windows only) mixed separators are rejected.
func SplitWith(path string, style Style) ([]string, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	switch style {
	case WindowsStyle:
		return splitWindows(path)
	default:
		return splitUnix(path)
	}
}

func splitUnix(path string) ([]string, error) {
	if path[0] != '/' {
		return nil, fmt.Errorf("%w: %q", ErrRelativePath, path)
	}
	if path == "/" {
		return []string{""}, nil
	}
	path = strings.TrimSuffix(path, "/")
	segments := strings.Split(path, "/")
	// segments[0] is the root marker
	for _, s := range segments[1:] {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptySegment, path)
		}
	}
	return segments, nil
}

func splitWindows(path string) ([]string, error) {
	hasBack := strings.Contains(path, `\`)
	hasFwd := strings.Contains(path, "/")
	if hasBack && hasFwd {
		return nil, fmt.Errorf("%w: %q", ErrMixedSeparators, path)
	}
	sep := `\`
	if hasFwd {
		sep = "/"
	}
	if !isDrive(path) {
		return nil, fmt.Errorf("%w: %q", ErrRelativePath, path)
	}
	path = strings.TrimSuffix(path, sep)
	segments := strings.Split(path, sep)
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptySegment, path)
		}
	}
	return segments, nil
}

// isDrive reports whether path starts with a drive letter followed by either
// the end of the string or a separator
func isDrive(path string) bool {
	if len(path) < 2 || path[1] != ':' {
		return false
	}
	c := path[0]
	if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
		return false
	}
	return len(path) == 2 || path[2] == '\\' || path[2] == '/'
}

// Join is the inverse of [SplitWith]
func Join(segments []string, style Style) string {
	if len(segments) == 1 && segments[0] == "" {
		return "/"
	}
	return strings.Join(segments, style.Separator())
}

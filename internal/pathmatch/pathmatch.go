// Package pathmatch classifies source files by extension.
package pathmatch

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

// Kind is the processing class of a source path.
type Kind int

const (
	Passthrough Kind = iota
	Transcode
	Ignore
)

func (k Kind) String() string {
	switch k {
	case Transcode:
		return "transcode"
	case Ignore:
		return "ignore"
	default:
		return "passthrough"
	}
}

var folder = cases.Fold()

// Matcher holds case-folded extension sets. The zero value passes everything
// through. A Matcher is safe for concurrent use once built.
type Matcher struct {
	allowed map[string]struct{}
	ignored map[string]struct{}
}

// New builds a Matcher. Extensions may be given with or without a leading dot.
func New(allowed, ignored []string) *Matcher {
	return &Matcher{allowed: foldSet(allowed), ignored: foldSet(ignored)}
}

// Classify reports how path should be processed. Ignored extensions win over
// allowed ones; files without an extension pass through.
func (m *Matcher) Classify(path string) Kind {
	ext := Extension(path)
	if ext == "" {
		return Passthrough
	}
	if _, ok := m.ignored[ext]; ok {
		return Ignore
	}
	if _, ok := m.allowed[ext]; ok {
		return Transcode
	}
	return Passthrough
}

// Classify is a convenience for one-off checks.
func Classify(path string, allowed, ignored []string) Kind {
	return New(allowed, ignored).Classify(path)
}

// Extension returns the case-folded extension of path without its dot.
func Extension(path string) string {
	base := filepath.Base(path)
	// a leading dot marks a hidden file, not an extension
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 || idx == len(base)-1 {
		return ""
	}
	return folder.String(base[idx+1:])
}

func foldSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimLeft(strings.TrimSpace(value), ".")
		if trimmed == "" {
			continue
		}
		set[folder.String(trimmed)] = struct{}{}
	}
	return set
}

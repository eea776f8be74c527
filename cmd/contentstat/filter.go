package main

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// Filter decides which file paths of a Contents index are counted
type Filter struct {
	gitIgnore       *ignore.GitIgnore
	includePatterns []string
	excludePatterns []string
	excludedDirs    []string
}

// NewFilter creates a filter from glob patterns and an optional file of
// gitignore-style patterns. Exclude patterns ending with "/" exclude every
// path below that directory.
func NewFilter(ignoreFile string, includePatterns []string, excludePatterns []string) (*Filter, error) {
	var excludedDirs []string
	var fileExcludePatterns []string

	for _, pat := range excludePatterns {
		pat = strings.TrimPrefix(pat, "/")
		if strings.HasSuffix(pat, "/") {
			excludedDirs = append(excludedDirs, strings.TrimSuffix(pat, "/"))
			continue
		}
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pat)
		}
		fileExcludePatterns = append(fileExcludePatterns, pat)
	}

	var include []string
	for _, pat := range includePatterns {
		pat = strings.TrimPrefix(pat, "/")
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid include pattern %q", pat)
		}
		include = append(include, pat)
	}

	f := &Filter{
		includePatterns: include,
		excludePatterns: fileExcludePatterns,
		excludedDirs:    excludedDirs,
	}

	if ignoreFile != "" {
		gitIgnore, err := ignore.CompileIgnoreFile(ignoreFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load ignore file %s: %w", ignoreFile, err)
		}
		f.gitIgnore = gitIgnore
	}

	return f, nil
}

// Empty reports whether the filter lets every path through.
func (f *Filter) Empty() bool {
	return f.gitIgnore == nil &&
		len(f.includePatterns) == 0 &&
		len(f.excludePatterns) == 0 &&
		len(f.excludedDirs) == 0
}

// ShouldInclude returns true if the file path should be counted
func (f *Filter) ShouldInclude(p string) bool {
	p = strings.TrimPrefix(p, "/")

	if f.gitIgnore != nil && f.gitIgnore.MatchesPath(p) {
		return false
	}

	if f.isExcludedDir(p) {
		return false
	}

	if f.matchesAnyPattern(p, f.excludePatterns) {
		return false
	}

	// If include patterns exist, the path must match at least one
	if len(f.includePatterns) > 0 {
		return f.matchesAnyPattern(p, f.includePatterns)
	}

	return true
}

func (f *Filter) isExcludedDir(p string) bool {
	for _, dir := range f.excludedDirs {
		if p == dir || strings.HasPrefix(p, dir+"/") {
			return true
		}
	}
	return false
}

// matchesAnyPattern matches patterns containing a slash against the whole
// path and the rest against its base name.
func (f *Filter) matchesAnyPattern(p string, patterns []string) bool {
	for _, pattern := range patterns {
		target := p
		if !strings.Contains(pattern, "/") {
			target = path.Base(p)
		}
		if matched, err := doublestar.Match(pattern, target); err == nil && matched {
			return true
		}
	}
	return false
}

package contents

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTop is the number of packages a report lists unless told otherwise.
const DefaultTop = 10

const (
	indexWidth = 3
	nameWidth  = 50
	countWidth = 15
)

// Entry is one ranked package.
type Entry struct {
	Package string   `yaml:"package"`
	Count   int      `yaml:"files"`
	Files   []string `yaml:"file_list,omitempty"`
}

// SortCounts returns every key of idx with its count, ordered by count.
// Equal counts keep the order in which their keys entered the index;
// ascending order is the exact reverse of descending order.
func SortCounts(idx *Index, desc bool) []Entry {
	entries := make([]Entry, 0, idx.Len())
	for _, pkg := range idx.order {
		entries = append(entries, Entry{Package: pkg, Count: idx.counts[pkg]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	if !desc {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	return entries
}

// Report is the ranked view of one architecture's Index.
type Report struct {
	Arch      string  `yaml:"architecture"`
	Packages  int     `yaml:"total_packages"`
	Files     int     `yaml:"total_files"`
	Empty     int     `yaml:"empty_packages"`
	Entries   []Entry `yaml:"top"`
	Ungrouped int     `yaml:"ungrouped_lines"`
}

// NewReport ranks idx and keeps the top entries. The Ungrouped bucket is not
// ranked and is left out of the totals; its count is carried separately. A
// top of zero or less means DefaultTop. Tracked file lists are attached to
// the ranked entries.
func NewReport(arch string, idx *Index, top int) *Report {
	if top <= 0 {
		top = DefaultTop
	}
	r := &Report{Arch: arch}
	for _, e := range SortCounts(idx, true) {
		if e.Package == Ungrouped {
			r.Ungrouped = e.Count
			continue
		}
		r.Packages++
		r.Files += e.Count
		if e.Count == 0 {
			r.Empty++
		}
		if len(r.Entries) < top {
			if idx.TracksFiles() {
				e.Files = append([]string{}, idx.files[e.Package]...)
			}
			r.Entries = append(r.Entries, e)
		}
	}
	return r
}

// Render writes the fixed-width table.
func (r *Report) Render(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "FOR ARCHITECTURE '%s':\n", r.Arch)
	fmt.Fprintf(&b, "%s %s\n",
		center("PACKAGE NAME", indexWidth+2+nameWidth),
		center("NUMBER OF FILES", countWidth))
	for i, e := range r.Entries {
		fmt.Fprintf(&b, "%*d. %s %*d\n", indexWidth, i+1, dashPad(e.Package, nameWidth), countWidth, e.Count)
	}
	if r.Ungrouped > 0 {
		fmt.Fprintf(&b, "\n%d line(s) could not be attributed to a package (%s)\n", r.Ungrouped, Ungrouped)
	}
	fmt.Fprintf(&b, "\n%d package(s), %d file(s), %d empty package(s)\n", r.Packages, r.Files, r.Empty)
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderFiles writes the tracked files of every ranked package.
func (r *Report) RenderFiles(w io.Writer) error {
	var b strings.Builder
	for i, e := range r.Entries {
		fmt.Fprintf(&b, "\n%*d. %s (%d files)\n", indexWidth, i+1, e.Package, e.Count)
		for _, f := range e.Files {
			fmt.Fprintf(&b, "     %s\n", f)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// String returns the rendered table.
func (r *Report) String() string {
	var b strings.Builder
	_ = r.Render(&b)
	return b.String()
}

// YAML returns the report encoded as YAML.
func (r *Report) YAML() ([]byte, error) {
	out, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report for %s: %w", r.Arch, err)
	}
	return out, nil
}

// ReportPath returns <dir>/<base>_<arch>.<ext>.
func ReportPath(dir, base, arch, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", base, arch, ext))
}

// WriteFile writes data to <dir>/<base>_<arch>.<ext>, replacing any previous
// content, and returns the path written.
func WriteFile(dir, base, arch, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	path := ReportPath(dir, base, arch, ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return path, nil
}

func dashPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat("-", width-len(s))
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	right := width - len(s) - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

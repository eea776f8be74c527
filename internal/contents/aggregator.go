package contents

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Ungrouped is the index key collecting rows whose files could not be
// attributed to a package.
const Ungrouped = "ungrouped_data"

// ErrEmptyPackageName is returned when a row names an empty package. The
// aggregation pass stops, since the index would otherwise be incomplete.
var ErrEmptyPackageName = errors.New("empty package name")

// Index maps package names to the number of files they own and, when file
// tracking is enabled, to the files themselves.
type Index struct {
	counts     map[string]int
	files      map[string][]string
	order      []string
	trackFiles bool
}

// NewIndex returns an empty Index. When trackFiles is set the Index also
// keeps every file path per package.
func NewIndex(trackFiles bool) *Index {
	idx := &Index{
		counts:     make(map[string]int),
		trackFiles: trackFiles,
	}
	if trackFiles {
		idx.files = make(map[string][]string)
	}
	return idx
}

// Count returns the number of files recorded for pkg.
func (idx *Index) Count(pkg string) (int, bool) {
	n, ok := idx.counts[pkg]
	return n, ok
}

// Counts returns a copy of the package to count mapping.
func (idx *Index) Counts() map[string]int {
	out := make(map[string]int, len(idx.counts))
	for k, v := range idx.counts {
		out[k] = v
	}
	return out
}

// Files returns the tracked files of pkg in the order they were read.
func (idx *Index) Files(pkg string) []string {
	return idx.files[pkg]
}

// FileLists returns the package to files mapping. It is empty unless the
// Index tracks files.
func (idx *Index) FileLists() map[string][]string {
	out := make(map[string][]string, len(idx.files))
	for k, v := range idx.files {
		out[k] = append(make([]string, 0, len(v)), v...)
	}
	return out
}

// TracksFiles reports whether the Index keeps file lists.
func (idx *Index) TracksFiles() bool {
	return idx.trackFiles
}

// Packages returns the keys in the order they were first inserted.
func (idx *Index) Packages() []string {
	return append([]string(nil), idx.order...)
}

// Len returns the number of keys, including Ungrouped when present.
func (idx *Index) Len() int {
	return len(idx.order)
}

func (idx *Index) touch(pkg string) {
	if _, ok := idx.counts[pkg]; !ok {
		idx.order = append(idx.order, pkg)
		idx.counts[pkg] = 0
	}
}

func (idx *Index) add(pkg string, files []string) {
	idx.touch(pkg)
	idx.counts[pkg] += len(files)
	if idx.trackFiles {
		idx.files[pkg] = append(idx.files[pkg], files...)
	}
}

func (idx *Index) zero(pkg string) {
	idx.touch(pkg)
	idx.counts[pkg] = 0
	if idx.trackFiles {
		idx.files[pkg] = []string{}
	}
}

func (idx *Index) ungrouped(tokens []string) {
	idx.touch(Ungrouped)
	idx.counts[Ungrouped]++
	if idx.trackFiles {
		idx.files[Ungrouped] = append(idx.files[Ungrouped], tokens...)
	}
}

// Stats summarizes one aggregation pass.
type Stats struct {
	Lines     int
	Normal    int
	ZeroFiles int
	Ungrouped int
	Skipped   int
}

// SplitLines trims trailing whitespace from blob and splits it on newlines.
func SplitLines(blob string) []string {
	blob = strings.TrimRight(blob, " \t\r\n\v\f")
	if blob == "" {
		return nil
	}
	return strings.Split(blob, "\n")
}

// Aggregator folds tokenized lines into an Index.
type Aggregator struct {
	Tokenizer Tokenizer
	// Keep, when set, drops the file paths it rejects before a row is
	// classified.
	Keep   func(path string) bool
	Logger *slog.Logger
}

// NewAggregator returns an Aggregator using the tokenizer for mode.
func NewAggregator(mode Mode, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		Tokenizer: NewTokenizer(mode),
		Logger:    logger,
	}
}

// Run folds lines into idx. idx should be fresh: counts only ever grow, so
// running twice over the same Index double counts.
func (a *Aggregator) Run(idx *Index, lines []string) (Stats, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tok := a.Tokenizer
	if tok == nil {
		tok = NewTokenizer(ModePattern)
	}

	var st Stats
	for i, line := range lines {
		st.Lines++
		row := tok.Tokenize(line)
		if a.Keep != nil && len(row.Files) > 0 && !row.declaresEmpty() {
			row.Files = keepFiles(row.Files, a.Keep)
			if len(row.Files) == 0 {
				st.Skipped++
				continue
			}
		}

		switch row.Kind() {
		case RowZeroFiles:
			if err := checkNames(row.Declared()); err != nil {
				return st, fmt.Errorf("line %d: %q: %w", i+1, line, err)
			}
			st.ZeroFiles++
			for _, pkg := range row.Declared() {
				idx.zero(pkg)
			}
			logger.Debug("package declared empty", "line", i+1, "packages", row.Declared())
		case RowNormal:
			// Validate the whole list first so a failing row leaves no
			// partial update behind.
			if err := checkNames(row.Packages); err != nil {
				return st, fmt.Errorf("line %d: %q: %w", i+1, line, err)
			}
			st.Normal++
			for _, pkg := range row.Packages {
				idx.add(pkg, row.Files)
			}
		case RowUngrouped:
			st.Ungrouped++
			tokens := row.Packages
			if len(tokens) == 0 {
				tokens = row.Files
			}
			idx.ungrouped(tokens)
			logger.Warn("malformed line", "line", i+1, "content", line)
		case RowBlank:
			st.Skipped++
			logger.Warn("empty line skipped", "line", i+1)
		}
	}
	return st, nil
}

// Aggregate builds a fresh Index from lines.
func Aggregate(lines []string, mode Mode, trackFiles bool, logger *slog.Logger) (*Index, Stats, error) {
	idx := NewIndex(trackFiles)
	st, err := NewAggregator(mode, logger).Run(idx, lines)
	if err != nil {
		return nil, st, err
	}
	return idx, st, nil
}

func checkNames(pkgs []string) error {
	for _, pkg := range pkgs {
		if pkg == "" {
			return ErrEmptyPackageName
		}
	}
	return nil
}

func keepFiles(files []string, keep func(string) bool) []string {
	var out []string
	for _, f := range files {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

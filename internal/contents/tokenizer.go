// Package contents parses Debian Contents indexes and aggregates them into
// per-package file counts.
package contents

import (
	"fmt"
	"regexp"
	"strings"
)

// EmptyPackage marks a row declaring packages that own no files.
const EmptyPackage = "EMPTY_PACKAGE"

// Mode selects how a line is split into its file and package fields.
type Mode int

const (
	// ModePattern looks for a package list at the end of the line and falls
	// back to ModePlain when there is none.
	ModePattern Mode = iota
	// ModePlain treats the last whitespace separated token as the package field.
	ModePlain
)

func (m Mode) String() string {
	switch m {
	case ModePattern:
		return "pattern"
	case ModePlain:
		return "plain"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts "pattern" or "plain" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pattern", "regex":
		return ModePattern, nil
	case "plain", "split":
		return ModePlain, nil
	default:
		return 0, fmt.Errorf("unknown tokenizer mode %q (expected pattern or plain)", s)
	}
}

// RowKind classifies a tokenized row.
type RowKind int

const (
	// RowBlank has neither files nor packages.
	RowBlank RowKind = iota
	// RowNormal has both a file list and a package list.
	RowNormal
	// RowZeroFiles declares that its packages own no files.
	RowZeroFiles
	// RowUngrouped has content but no identifiable file list.
	RowUngrouped
)

func (k RowKind) String() string {
	switch k {
	case RowBlank:
		return "blank"
	case RowNormal:
		return "normal"
	case RowZeroFiles:
		return "zero-files"
	case RowUngrouped:
		return "ungrouped"
	default:
		return fmt.Sprintf("RowKind(%d)", int(k))
	}
}

// Row is one tokenized line. A nil slice means the field was empty.
type Row struct {
	Files    []string
	Packages []string
}

// Kind reports how the aggregator should treat the row.
func (r Row) Kind() RowKind {
	switch {
	case len(r.Files) == 0 && len(r.Packages) == 0:
		return RowBlank
	case len(r.Packages) == 0:
		// A lone file field carries no owner to attribute it to.
		return RowUngrouped
	case r.declaresEmpty():
		return RowZeroFiles
	case len(r.Files) == 0:
		return RowUngrouped
	default:
		return RowNormal
	}
}

// Declared returns the packages a RowZeroFiles row declares. The marker is
// normally in the file position; a row with the marker as its package field
// declares the names in its file field instead.
func (r Row) Declared() []string {
	if isEmptyMarker(r.Files) {
		return r.Packages
	}
	return r.Files
}

func (r Row) declaresEmpty() bool {
	if len(r.Files) == 0 || len(r.Packages) == 0 {
		return false
	}
	return isEmptyMarker(r.Files) || isEmptyMarker(r.Packages)
}

func isEmptyMarker(tokens []string) bool {
	return len(tokens) == 1 && strings.EqualFold(tokens[0], EmptyPackage)
}

// SplitByComma splits s on every comma. The empty string yields nil rather
// than a slice holding one empty string.
func SplitByComma(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Tokenizer splits a raw Contents line into files and packages.
type Tokenizer interface {
	Tokenize(line string) Row
}

// NewTokenizer returns the Tokenizer for mode.
func NewTokenizer(mode Mode) Tokenizer {
	if mode == ModePlain {
		return plainTokenizer{}
	}
	return patternTokenizer{}
}

type plainTokenizer struct{}

func (plainTokenizer) Tokenize(line string) Row {
	return splitPlain(line)
}

func splitPlain(line string) Row {
	fileTokens, pkg := plainFields(line)
	return Row{
		Files:    SplitByComma(strings.Join(fileTokens, "")),
		Packages: SplitByComma(pkg),
	}
}

// plainFields splits line on whitespace runs into the tokens forming the
// file field and the last token, which is the package field.
func plainFields(line string) ([]string, string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ""
	}
	last := len(fields) - 1
	return fields[:last], fields[last]
}

// packageList matches a comma separated list of section/name package paths
// at the end of a line, preceded by whitespace or the line start. Blanks
// after a comma are tolerated, which a plain split cannot do.
var packageList = regexp.MustCompile(
	`(?:^|\s)((?:[a-z0-9][a-z0-9+.\-]*/)*[a-z0-9][a-z0-9+.\-]*(?:,[ \t]*(?:[a-z0-9][a-z0-9+.\-]*/)*[a-z0-9][a-z0-9+.\-]*)*)\s*$`,
)

type patternTokenizer struct{}

func (patternTokenizer) Tokenize(line string) Row {
	loc := packageList.FindStringSubmatchIndex(line)
	if loc == nil {
		return splitPlain(line)
	}
	files := strings.Join(strings.Fields(line[:loc[2]]), "")
	pkgs := strings.Join(strings.Fields(line[loc[2]:loc[3]]), "")
	return Row{
		Files:    SplitByComma(files),
		Packages: SplitByComma(pkgs),
	}
}

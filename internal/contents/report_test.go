package contents

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func indexOf(t *testing.T, lines []string, trackFiles bool) *Index {
	t.Helper()
	idx, _, err := Aggregate(lines, ModePattern, trackFiles, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return idx
}

func TestSortCounts(t *testing.T) {
	idx := indexOf(t, []string{"x a", "x,y,z,v,w b", "x,y,z c"}, false)

	desc := SortCounts(idx, true)
	want := []Entry{{Package: "b", Count: 5}, {Package: "c", Count: 3}, {Package: "a", Count: 1}}
	if diff := cmp.Diff(want, desc); diff != "" {
		t.Fatalf("descending mismatch (-want +got):\n%s", diff)
	}

	asc := SortCounts(idx, false)
	want = []Entry{{Package: "a", Count: 1}, {Package: "c", Count: 3}, {Package: "b", Count: 5}}
	if diff := cmp.Diff(want, asc); diff != "" {
		t.Fatalf("ascending mismatch (-want +got):\n%s", diff)
	}
}

func TestSortCountsKeepsInsertionOrderOnTies(t *testing.T) {
	idx := indexOf(t, fixture, false)
	var got []string
	for _, e := range SortCounts(idx, true) {
		got = append(got, e.Package)
	}
	want := []string{"p5", "p3", "p2", Ungrouped, "p1", "p4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestNewReport(t *testing.T) {
	idx := indexOf(t, fixture, false)

	r := NewReport("amd64", idx, 0)
	if r.Packages != 5 {
		t.Fatalf("expected 5 packages, got %d", r.Packages)
	}
	if r.Ungrouped != 2 {
		t.Fatalf("expected 2 ungrouped lines, got %d", r.Ungrouped)
	}
	if r.Files != 10 {
		t.Fatalf("expected 10 files outside %s, got %d", Ungrouped, r.Files)
	}
	if r.Empty != 1 {
		t.Fatalf("expected p4 as the only empty package, got %d", r.Empty)
	}
	if len(r.Entries) != 5 {
		t.Fatalf("expected every package under the default top, got %d", len(r.Entries))
	}
	for _, e := range r.Entries {
		if e.Package == Ungrouped {
			t.Fatalf("%s must not be ranked", Ungrouped)
		}
	}

	r = NewReport("amd64", idx, 2)
	want := []Entry{{Package: "p5", Count: 4}, {Package: "p3", Count: 3}}
	if diff := cmp.Diff(want, r.Entries); diff != "" {
		t.Fatalf("top 2 mismatch (-want +got):\n%s", diff)
	}
}

func TestRender(t *testing.T) {
	idx := indexOf(t, fixture, false)
	out := NewReport("arm64", idx, 3).String()
	lines := strings.Split(out, "\n")

	if lines[0] != "FOR ARCHITECTURE 'arm64':" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if strings.TrimSpace(lines[1]) == "" ||
		!strings.Contains(lines[1], "PACKAGE NAME") ||
		!strings.Contains(lines[1], "NUMBER OF FILES") {
		t.Fatalf("unexpected column header: %q", lines[1])
	}

	wantRow := "  1. p5" + strings.Repeat("-", nameWidth-2) + " " + strings.Repeat(" ", countWidth-1) + "4"
	if lines[2] != wantRow {
		t.Fatalf("row mismatch:\n got %q\nwant %q", lines[2], wantRow)
	}
	for i, line := range lines[2:5] {
		if len(line) != indexWidth+2+nameWidth+1+countWidth {
			t.Fatalf("row %d has width %d: %q", i+1, len(line), line)
		}
	}
	if !strings.Contains(out, "2 line(s) could not be attributed") {
		t.Fatalf("expected ungrouped footer:\n%s", out)
	}
	if !strings.HasSuffix(out, "\n5 package(s), 10 file(s), 1 empty package(s)\n") {
		t.Fatalf("expected summary footer:\n%s", out)
	}
}

func TestRenderLongName(t *testing.T) {
	name := "libs/" + strings.Repeat("x", nameWidth)
	idx := indexOf(t, []string{"f " + name}, false)
	out := NewReport("i386", idx, 1).String()
	if !strings.Contains(out, "  1. "+name+" ") {
		t.Fatalf("long names should be written whole:\n%s", out)
	}
}

func TestRenderFiles(t *testing.T) {
	idx := indexOf(t, fixture, true)
	var b strings.Builder
	if err := NewReport("amd64", idx, 2).RenderFiles(&b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := b.String()
	for _, want := range []string{"p5 (4 files)", "     f10\n", "p3 (3 files)", "     f6\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestReportYAML(t *testing.T) {
	idx := indexOf(t, fixture, true)
	data, err := NewReport("amd64", idx, 1).YAML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded Report
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	want := Report{
		Arch:      "amd64",
		Packages:  5,
		Files:     10,
		Empty:     1,
		Entries:   []Entry{{Package: "p5", Count: 4, Files: []string{"f8", "f9", "f10", "f11"}}},
		Ungrouped: 2,
	}
	if diff := cmp.Diff(want, decoded); diff != "" {
		t.Fatalf("decoded report mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := WriteFile(dir, "contents", "amd64", "txt", []byte("first run, longer content\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(dir, "contents_amd64.txt"); path != want {
		t.Fatalf("expected path %q, got %q", want, path)
	}
	if _, err := WriteFile(dir, "contents", "amd64", "txt", []byte("second\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	if string(data) != "second\n" {
		t.Fatalf("expected previous content to be replaced, got %q", data)
	}
}

package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const listing = `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 3.2 Final//EN">
<html>
 <head><title>Index of /debian/dists/stable/main</title></head>
 <body>
<h1>Index of /debian/dists/stable/main</h1>
<table>
<tr><td><a href="/debian/dists/stable/">Parent Directory</a></td></tr>
<tr><td><a href="Contents-all.gz">Contents-all.gz</a></td><td>2024-06-29 09:46</td></tr>
<tr><td><a href="Contents-amd64.gz">Contents-amd64.gz</a></td><td>2024-06-29 09:46</td></tr>
<tr><td><a href="Contents-loong64.gz">Contents-loong64.gz</a></td><td>2024-06-29 09:46</td></tr>
<tr><td><a href="./Contents-udeb-amd64.gz">Contents-udeb-amd64.gz</a></td><td>2024-06-29 09:46</td></tr>
<tr><td><a href="Contents-amd64.xz">Contents-amd64.xz</a></td><td>2024-06-29 09:46</td></tr>
<tr><td><a href="binary-amd64/">binary-amd64/</a></td></tr>
<tr><td><a href="i18n/">i18n/</a></td></tr>
<tr><td><a href="Release">Release</a></td></tr>
</table>
</body></html>
`

// listingClient serves listing for the component directory and counts the
// requests it answers.
func listingClient(body string, status int, calls *int) *http.Client {
	return &http.Client{
		Transport: testClientFunc(func(req *http.Request) *http.Response {
			*calls++
			if !strings.HasSuffix(req.URL.Path, "/dists/stable/main/") {
				status = http.StatusNotFound
			}
			return &http.Response{
				StatusCode: status,
				Status:     http.StatusText(status),
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(body)),
			}
		}),
	}
}

func TestArchFromHref(t *testing.T) {
	cases := map[string]string{
		"Contents-amd64.gz":            "amd64",
		"./Contents-udeb-armhf.gz":     "udeb-armhf",
		"/debian/Contents-source.gz":   "source",
		"Contents-hurd-i386.xz":        "hurd-i386",
		"Contents-":                    "",
		"Contents-.gz":                 "",
		"binary-amd64/":                "",
		"Release":                      "",
		"Contents-amd64":               "",
		"https://x/Contents-s390x.gz":  "s390x",
		"?C=N;O=D":                     "",
		"Translation-Contents-amd64.x": "",
	}
	for href, want := range cases {
		got, ok := archFromHref(href)
		if ok != (want != "") || got != want {
			t.Errorf("archFromHref(%q) = %q, %v, want %q", href, got, ok, want)
		}
	}
}

func TestFetcherArchitectures(t *testing.T) {
	var calls int
	f := &Fetcher{Client: listingClient(listing, http.StatusOK, &calls)}
	got, err := f.Architectures(context.Background(), "http://mirror.example/debian", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"all", "amd64", "loong64", "udeb-amd64"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("architectures mismatch (-want +got):\n%s", diff)
	}

	f = &Fetcher{Client: listingClient("", http.StatusForbidden, &calls)}
	if _, err := f.Architectures(context.Background(), "http://mirror.example/debian", "", ""); !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
}

func TestArchCache(t *testing.T) {
	c := ArchCache{Dir: filepath.Join(t.TempDir(), "cache")}
	const mirror = "http://mirror.example:8080/debian"
	if _, err := c.Load(mirror, "stable", "main"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist before the first store, got %v", err)
	}
	if err := c.Store(mirror, "stable", "main", []string{"amd64", "loong64"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := c.Load(mirror, "stable", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"amd64", "loong64"}, got); diff != "" {
		t.Fatalf("cache mismatch (-want +got):\n%s", diff)
	}
	if _, err := c.Load(mirror, "sid", "main"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dists should not share a cache file, got %v", err)
	}
	path, err := c.Path(mirror, "stable", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "arches_mirror.example_8080_debian_dists_stable_main.txt" {
		t.Fatalf("unexpected cache file name %q", filepath.Base(path))
	}

	var disabled ArchCache
	if err := disabled.Store(mirror, "stable", "main", []string{"amd64"}); err != nil {
		t.Fatalf("a disabled cache should ignore stores, got %v", err)
	}
	if _, err := disabled.Load(mirror, "stable", "main"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist from a disabled cache, got %v", err)
	}
}

func TestCatalogCheck(t *testing.T) {
	var calls int
	cat := &Catalog{
		Fetcher: &Fetcher{Client: listingClient(listing, http.StatusOK, &calls)},
		Cache:   ArchCache{Dir: t.TempDir()},
		Mirror:  "http://mirror.example/debian",
	}
	ctx := context.Background()

	if err := cat.Check(ctx, "amd64"); err != nil || calls != 0 {
		t.Fatalf("built-in names should not need the mirror: err=%v calls=%d", err, calls)
	}
	if err := cat.Check(ctx, "loong64"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cat.Check(ctx, "x86_64"); !errors.Is(err, ErrUnknownArch) {
		t.Fatalf("expected ErrUnknownArch, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one listing request, got %d", calls)
	}

	// A new Catalog finds loong64 in the cache without any request.
	calls = 0
	cat = &Catalog{
		Fetcher: &Fetcher{Client: listingClient("", http.StatusInternalServerError, &calls)},
		Cache:   cat.Cache,
		Mirror:  cat.Mirror,
	}
	if err := cat.Check(ctx, "LOONG64"); err != nil || calls != 0 {
		t.Fatalf("expected a cache hit: err=%v calls=%d", err, calls)
	}
	err := cat.Check(ctx, "x86_64")
	if !errors.Is(err, ErrUnknownArch) || !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrUnknownArch wrapping ErrStatus, got %v", err)
	}
}

func TestCatalogList(t *testing.T) {
	var calls int
	dir := t.TempDir()
	cat := &Catalog{
		Fetcher: &Fetcher{Client: listingClient("", http.StatusServiceUnavailable, &calls)},
		Cache:   ArchCache{Dir: dir},
		Mirror:  "http://mirror.example/debian",
	}
	if _, err := cat.List(context.Background()); !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus without a cache, got %v", err)
	}

	if err := cat.Cache.Store(cat.Mirror, "", "", []string{"amd64", "arm64"}); err != nil {
		t.Fatal(err)
	}
	cat = &Catalog{Fetcher: cat.Fetcher, Cache: cat.Cache, Mirror: cat.Mirror}
	got, err := cat.List(context.Background())
	if err != nil {
		t.Fatalf("expected the cached names, got %v", err)
	}
	if diff := cmp.Diff([]string{"amd64", "arm64"}, got); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}

	cat = &Catalog{
		Fetcher: &Fetcher{Client: listingClient("<html><body>empty</body></html>", http.StatusOK, &calls)},
		Cache:   ArchCache{},
		Mirror:  "http://mirror.example/debian",
	}
	if _, err := cat.List(context.Background()); err == nil {
		t.Fatalf("expected an error for a listing without Contents links")
	}
}

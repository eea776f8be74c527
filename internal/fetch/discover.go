package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

const contentsPrefix = "Contents-"

// Architectures reads the directory listing of <mirror>/dists/<dist>/<component>/
// and returns the architectures a Contents index is linked for, sorted.
func (f *Fetcher) Architectures(ctx context.Context, mirror, dist, component string) ([]string, error) {
	base, err := componentURL(mirror, dist, component)
	if err != nil {
		return nil, err
	}
	u := base.String() + "/"
	log := f.logger().With("component", "fetch.Architectures", "url", u)
	log.Debug("reading architecture listing")

	body, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	arches, err := parseListing(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing %s: %w", u, err)
	}
	log.Debug("read architecture listing", "count", len(arches))
	return arches, nil
}

func parseListing(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var arches []string
	collectArches(&arches, doc)
	slices.Sort(arches)
	return slices.Compact(arches), nil
}

func collectArches(arches *[]string, n *html.Node) {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, a := range n.Attr {
			if a.Key != "href" {
				continue
			}
			if arch, ok := archFromHref(a.Val); ok {
				*arches = append(*arches, arch)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectArches(arches, c)
	}
}

// archFromHref extracts "amd64" from links like "Contents-amd64.gz" or
// "./Contents-amd64.xz".
func archFromHref(href string) (string, bool) {
	name := href[strings.LastIndexByte(href, '/')+1:]
	rest, ok := strings.CutPrefix(name, contentsPrefix)
	if !ok {
		return "", false
	}
	arch, _, ok := strings.Cut(rest, ".")
	if !ok || arch == "" {
		return "", false
	}
	return arch, true
}

// ArchCache keeps discovered architecture names on disk, one per line, so
// later runs can validate without asking the mirror. An empty Dir disables
// the cache.
type ArchCache struct {
	Dir string
}

// DefaultCacheDir returns the per-user cache directory, or "" when the
// platform has none.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "contentstat")
}

var cacheNameReplacer = strings.NewReplacer("/", "_", ":", "_", "\\", "_")

// Path returns the cache file for one mirror, dist and component.
func (c ArchCache) Path(mirror, dist, component string) (string, error) {
	if c.Dir == "" {
		return "", fmt.Errorf("architecture cache: %w", os.ErrNotExist)
	}
	base, err := componentURL(mirror, dist, component)
	if err != nil {
		return "", err
	}
	name := cacheNameReplacer.Replace(base.Host + base.Path)
	return filepath.Join(c.Dir, "arches_"+strings.Trim(name, "_")+".txt"), nil
}

// Load returns the cached names. A missing cache reports os.ErrNotExist.
func (c ArchCache) Load(mirror, dist, component string) ([]string, error) {
	path, err := c.Path(mirror, dist, component)
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	var arches []string
	sc := bufio.NewScanner(fd)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			arches = append(arches, name)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return arches, nil
}

// Store replaces the cached names. It is a no-op for a disabled cache.
func (c ArchCache) Store(mirror, dist, component string, arches []string) error {
	if c.Dir == "" {
		return nil
	}
	path, err := c.Path(mirror, dist, component)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	var b strings.Builder
	for _, arch := range arches {
		b.WriteString(arch)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Catalog decides which architectures a mirror publishes. The built-in list
// is consulted first, then the cache, then the mirror listing, which is read
// at most once per Catalog.
type Catalog struct {
	Fetcher   *Fetcher
	Cache     ArchCache
	Mirror    string
	Dist      string
	Component string

	listed []string
	err    error
	done   bool
}

// Check returns nil when arch is published. Unknown names wrap ErrUnknownArch.
func (c *Catalog) Check(ctx context.Context, arch string) error {
	if ValidArch(arch) == nil {
		return nil
	}
	arch = strings.ToLower(arch)
	log := c.Fetcher.logger().With("component", "fetch.Catalog", "arch", arch)
	if cached, err := c.Cache.Load(c.Mirror, c.Dist, c.Component); err == nil && slices.Contains(cached, arch) {
		log.Debug("architecture found in cache")
		return nil
	}
	log.Info("architecture not known locally, reading the mirror listing")
	listed, err := c.refresh(ctx)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnknownArch, arch, err)
	}
	if !slices.Contains(listed, arch) {
		return fmt.Errorf("%w: %q", ErrUnknownArch, arch)
	}
	return nil
}

// List returns the architectures the mirror links a Contents index for.
// When the mirror cannot be read the cached names are returned instead.
func (c *Catalog) List(ctx context.Context) ([]string, error) {
	listed, err := c.refresh(ctx)
	if err == nil {
		return listed, nil
	}
	cached, cerr := c.Cache.Load(c.Mirror, c.Dist, c.Component)
	if cerr != nil {
		return nil, err
	}
	c.Fetcher.logger().Warn("mirror listing unavailable, using cached architectures", "reason", err)
	return cached, nil
}

func (c *Catalog) refresh(ctx context.Context) ([]string, error) {
	if c.done {
		return c.listed, c.err
	}
	c.done = true
	c.listed, c.err = c.Fetcher.Architectures(ctx, c.Mirror, c.Dist, c.Component)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.listed) == 0 {
		c.err = errors.New("listing links no Contents index")
		return nil, c.err
	}
	if err := c.Cache.Store(c.Mirror, c.Dist, c.Component, c.listed); err != nil {
		c.Fetcher.logger().Warn("failed to cache architectures", "reason", err)
	}
	return c.listed, nil
}

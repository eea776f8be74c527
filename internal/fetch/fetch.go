// Package fetch downloads and decompresses Debian Contents indexes.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// DefaultMirror is the archive the indexes are fetched from.
	DefaultMirror = "http://ftp.uk.debian.org/debian"
	// DefaultDist is the distribution whose indexes are fetched.
	DefaultDist = "stable"
	// DefaultComponent is the archive area whose indexes are fetched.
	DefaultComponent = "main"
	// DefaultTimeout bounds a single download.
	DefaultTimeout = 2 * time.Minute
)

var (
	// ErrUnknownArch is returned for architectures the archive does not publish.
	ErrUnknownArch = errors.New("unknown architecture")
	// ErrInvalidArch is returned for names that cannot be an architecture.
	ErrInvalidArch = errors.New("invalid architecture")
	// ErrStatus is returned when the mirror answers with anything but 200.
	ErrStatus = errors.New("unexpected status code")
)

var architectures = map[string]struct{}{
	"all":      {},
	"amd64":    {},
	"arm64":    {},
	"armel":    {},
	"armhf":    {},
	"i386":     {},
	"mips64el": {},
	"mipsel":   {},
	"ppc64el":  {},
	"riscv64":  {},
	"s390x":    {},
	"source":   {},
}

// KnownArchitectures returns the names ValidArch accepts without asking a
// mirror, udeb variants excluded.
func KnownArchitectures() []string {
	out := make([]string, 0, len(architectures))
	for a := range architectures {
		out = append(out, a)
	}
	return out
}

// NormalizeArch lowercases arch. No architecture name is purely numeric, so
// those are rejected along with empty names.
func NormalizeArch(arch string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(arch))
	if name == "" || strings.Trim(name, "0123456789") == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidArch, arch)
	}
	return name, nil
}

// ValidArch checks arch against the architectures the Debian archive
// publishes Contents indexes for. "udeb-<arch>" selects the installer index.
// Case is ignored.
func ValidArch(arch string) error {
	name := strings.TrimPrefix(strings.ToLower(arch), "udeb-")
	if name == "source" && arch != name {
		return fmt.Errorf("%w: %q", ErrUnknownArch, arch)
	}
	if _, ok := architectures[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownArch, arch)
	}
	return nil
}

// URL returns the location of the Contents index for arch.
func URL(mirror, dist, component, arch string) (string, error) {
	base, err := componentURL(mirror, dist, component)
	if err != nil {
		return "", err
	}
	return base.JoinPath("Contents-" + arch + ".gz").String(), nil
}

// componentURL returns <mirror>/dists/<dist>/<component>, filling in the
// defaults for empty arguments.
func componentURL(mirror, dist, component string) (*url.URL, error) {
	if mirror == "" {
		mirror = DefaultMirror
	}
	if dist == "" {
		dist = DefaultDist
	}
	if component == "" {
		component = DefaultComponent
	}
	base, err := url.Parse(mirror)
	if err != nil {
		return nil, fmt.Errorf("invalid mirror %q: %w", mirror, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid mirror %q: expected an absolute URL", mirror)
	}
	return base.JoinPath("dists", dist, component), nil
}

// Fetcher downloads Contents indexes.
type Fetcher struct {
	Client *http.Client
	Logger *slog.Logger
}

// New returns a Fetcher whose client gives up after timeout.
func New(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return f.Logger
}

// Contents downloads the index at u and returns it decompressed.
func (f *Fetcher) Contents(ctx context.Context, u string) (string, error) {
	log := f.logger().With("component", "fetch.Contents", "url", u)
	log.Debug("attempting fetch of Contents file")

	body, err := f.get(ctx, u)
	if err != nil {
		return "", err
	}
	defer body.Close()

	text, c, err := decompress(body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", u, err)
	}
	log.Debug("fetched Contents file", "compression", c.String(), "size", len(text))
	return text, nil
}

// get issues a GET for u and returns the body of a 200 answer.
func (f *Fetcher) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s querying %s", ErrStatus, resp.Status, u)
	}
	return resp.Body, nil
}

// ReadFile reads a Contents index from disk, compressed or not.
func ReadFile(path string) (string, error) {
	fd, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fd.Close()

	text, _, err := decompress(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return text, nil
}

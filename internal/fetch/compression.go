package fetch

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type compression int

const (
	cmpGzip compression = iota
	cmpZstd
	cmpXz
	cmpNone
)

func (c compression) String() string {
	switch c {
	case cmpGzip:
		return "gzip"
	case cmpZstd:
		return "zstd"
	case cmpXz:
		return "xz"
	default:
		return "none"
	}
}

var cmpHeaders = [...][]byte{
	{0x1F, 0x8B, 0x08},
	{0x28, 0xB5, 0x2F, 0xFD},
	{0xFD, '7', 'z', 'X', 'Z', 0x00},
}

func detectCompression(b []byte) compression {
	for c, h := range cmpHeaders {
		if len(b) < len(h) {
			continue
		}
		if bytes.Equal(h, b[:len(h)]) {
			return compression(c)
		}
	}
	return cmpNone
}

// decompress reads all of r, undoing gzip, zstd or xz compression when the
// stream starts with the matching magic bytes. Anything else is read as is.
func decompress(r io.Reader) (string, compression, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return "", cmpNone, err
	}
	c := detectCompression(head)

	var src io.Reader
	switch c {
	case cmpGzip:
		g, err := gzip.NewReader(br)
		if err != nil {
			return "", c, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer g.Close()
		src = g
	case cmpZstd:
		z, err := zstd.NewReader(br)
		if err != nil {
			return "", c, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer z.Close()
		src = z
	case cmpXz:
		x, err := xz.NewReader(br)
		if err != nil {
			return "", c, fmt.Errorf("failed to open xz stream: %w", err)
		}
		src = x
	default:
		src = br
	}

	var b bytes.Buffer
	if _, err := io.Copy(&b, src); err != nil {
		return "", c, fmt.Errorf("failed to decompress %s stream: %w", c, err)
	}
	return b.String(), c, nil
}

package erf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"firestige.xyz/erfreader/internal/core/decoder"
)

const readBufferSize = 1 << 20

var gzipMagic = []byte{0x1F, 0x8B}

// Open opens an ERF file for reading. Gzip-compressed captures (.erf.gz)
// are detected by their magic bytes and decompressed on the fly.
func Open(path string, dec decoder.Decoder) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open erf file %s: %w", path, err)
	}

	src, err := wrapCompressed(bufio.NewReaderSize(f, readBufferSize))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open erf file %s: %w", path, err)
	}

	r := NewReader(src, dec)
	r.closer = f
	return r, nil
}

// wrapCompressed returns a decompressing reader when br starts with the
// gzip magic, br itself otherwise.
func wrapCompressed(br *bufio.Reader) (io.Reader, error) {
	magic, err := br.Peek(len(gzipMagic))
	if err != nil || !bytes.Equal(magic, gzipMagic) {
		// Short or empty files are left to the record reader.
		return br, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("invalid gzip stream: %w", err)
	}
	return zr, nil
}

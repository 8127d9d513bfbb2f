package mmapio

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/mmapio/blobstore"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// archiveChunkSize is the unit in which file contents are staged between the
// mapping and the codec. Each chunk moves through a guarded copy, so a disk
// full (or a truncated backing file) during archival surfaces as ErrNoSpace
// rather than a crash.
const archiveChunkSize = 256 * 1024

// Every archived image starts with a one-byte codec tag. Sniffing the codec
// from frame magics instead would misread uncompressed payloads that happen
// to begin with one.
const (
	imageCodecZstd byte = iota
	imageCodecLZ4
	imageCodecNone
)

// Archive streams a compressed image of the file to a blob store under the
// given name. The codec is selected by the file's WithCompression option and
// recorded in the image's header.
//
// Archive reads through the fault guard, so archiving a sparse file on a
// full disk cannot crash the process. The file is not locked against
// concurrent writers beyond per-chunk consistency; archive quiescent files
// for exact images.
func Archive(ctx context.Context, f *File, store blobstore.BlobStore, name string) error {
	tag, err := codecTag(f.opts.compression)
	if err != nil {
		return err
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("mmapio: create blob %s: %w", name, err)
	}

	if _, err := w.Write([]byte{tag}); err != nil {
		_ = w.Close()
		return fmt.Errorf("mmapio: archive %s: %w", name, err)
	}

	cw, err := newCompressor(w, f.opts.compression, f.opts.compressionLevel)
	if err != nil {
		_ = w.Close()
		return err
	}

	buf := make([]byte, archiveChunkSize)
	for off := int64(0); off < f.Len(); off += archiveChunkSize {
		if err := ctx.Err(); err != nil {
			_ = w.Close()
			return err
		}

		n := archiveChunkSize
		if off+int64(n) > f.Len() {
			n = int(f.Len() - off)
		}
		if _, err := f.ReadAt(buf[:n], off); err != nil {
			_ = w.Close()
			return err
		}
		if _, err := cw.Write(buf[:n]); err != nil {
			_ = w.Close()
			return fmt.Errorf("mmapio: archive %s: %w", name, err)
		}
	}

	if err := cw.Close(); err != nil {
		_ = w.Close()
		return fmt.Errorf("mmapio: archive %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mmapio: finalize blob %s: %w", name, err)
	}

	f.logger.Debug("file archived", "path", f.path, "blob", name)
	return nil
}

// Fetch downloads an archived image, reserves space for it at path and
// copies it into a fresh mapped file through the fault guard. The codec is
// read from the image's header, so the WithCompression option is not needed
// to match the archive side.
//
// size must be the uncompressed length of the image. On failure the
// destination file's contents are undefined and should be discarded.
func Fetch(ctx context.Context, store blobstore.BlobStore, name, path string, size int64, opts ...Option) (*File, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("mmapio: open blob %s: %w", name, err)
	}
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return nil, fmt.Errorf("mmapio: read blob %s: %w", name, err)
	}
	defer rc.Close()

	cr, err := newDecompressor(bufio.NewReader(rc))
	if err != nil {
		return nil, fmt.Errorf("mmapio: decode blob %s: %w", name, err)
	}
	defer cr.close()

	f, err := Open(path, size, opts...)
	if err != nil {
		return nil, err
	}

	var off int64
	buf := make([]byte, archiveChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			_ = f.Close()
			return nil, err
		}

		n, rerr := io.ReadFull(cr, buf)
		if n > 0 {
			if off+int64(n) > size {
				_ = f.Close()
				return nil, fmt.Errorf("mmapio: image %s larger than %d bytes", name, size)
			}
			if _, werr := f.WriteAt(buf[:n], off); werr != nil {
				_ = f.Close()
				return nil, werr
			}
			off += int64(n)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			_ = f.Close()
			return nil, fmt.Errorf("mmapio: read blob %s: %w", name, rerr)
		}
	}

	if off != size {
		_ = f.Close()
		return nil, fmt.Errorf("mmapio: image %s is %d bytes, want %d", name, off, size)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func newCompressor(w io.Writer, c Compression, level int) (io.WriteCloser, error) {
	switch c {
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("mmapio: create zstd encoder: %w", err)
		}
		return enc, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionNone:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("mmapio: unknown compression %d", c)
	}
}

func codecTag(c Compression) (byte, error) {
	switch c {
	case CompressionZstd:
		return imageCodecZstd, nil
	case CompressionLZ4:
		return imageCodecLZ4, nil
	case CompressionNone:
		return imageCodecNone, nil
	default:
		return 0, fmt.Errorf("mmapio: unknown compression %d", c)
	}
}

type decompressor struct {
	io.Reader
	close func()
}

// newDecompressor consumes the image's codec tag and returns a reader over
// the decoded payload.
func newDecompressor(br *bufio.Reader) (*decompressor, error) {
	tag, err := br.ReadByte()
	if err != nil {
		return nil, err
	}

	switch tag {
	case imageCodecZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &decompressor{Reader: dec, close: dec.Close}, nil
	case imageCodecLZ4:
		return &decompressor{Reader: lz4.NewReader(br), close: func() {}}, nil
	case imageCodecNone:
		return &decompressor{Reader: br, close: func() {}}, nil
	default:
		return nil, fmt.Errorf("unknown image codec 0x%02x", tag)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

package bronze

import (
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// openDecompressed opens the spooled raw file and wraps it in the declared
// decompressor. Zip archives are expected to hold a single data member; the
// first file entry is used.
func openDecompressed(path, compression string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening raw artifact %s", path)
	}
	switch compression {
	case "", "none":
		return f, nil
	case "gz", "gzip":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "opening gzip stream")
		}
		return &wrappedReadCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case "bz2", "bzip2":
		return &wrappedReadCloser{Reader: bzip2.NewReader(f), closers: []io.Closer{f}}, nil
	case "zst", "zstd":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "opening zstd stream")
		}
		zrc := zr.IOReadCloser()
		return &wrappedReadCloser{Reader: zrc, closers: []io.Closer{zrc, f}}, nil
	case "zip":
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "statting zip archive")
		}
		zr, err := zip.NewReader(f, info.Size())
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "opening zip archive")
		}
		for _, zf := range zr.File {
			if zf.FileInfo().IsDir() {
				continue
			}
			rc, err := zf.Open()
			if err != nil {
				f.Close()
				return nil, errors.Wrapf(err, "opening zip member %s", zf.Name)
			}
			return &wrappedReadCloser{Reader: rc, closers: []io.Closer{rc, f}}, nil
		}
		f.Close()
		return nil, errors.New("zip archive has no file members")
	default:
		f.Close()
		return nil, errors.Errorf("unsupported compression %q", compression)
	}
}

type wrappedReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (w *wrappedReadCloser) Close() error {
	var err error
	for _, c := range w.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

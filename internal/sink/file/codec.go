package file

import (
	"archive/tar"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"

	"github.com/acaciaworks/logship/internal/config"
)

var errShutdownDeadline = errors.New("file sink: archival worker pool did not drain before the shutdown deadline")

// archiveOne compresses src into archiveDir under archive.type
// (replacing its .log suffix) per the chosen codec, then removes src.
// The source is removed only after the archive write fully succeeds,
// and overwriting an existing archive of the same name is permitted —
// this is what makes the sweep idempotent across retries.
func archiveOne(src, archiveDir string, cfg config.ArchiveConfig) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	dst := filepath.Join(archiveDir, base+"."+string(cfg.Type))

	var writeErr error
	switch cfg.Type {
	case config.ArchiveZip:
		writeErr = archiveZip(src, dst, cfg.CompressionLevel)
	case config.ArchiveGz:
		writeErr = archiveGzip(src, dst, cfg.CompressionLevel)
	case config.ArchiveBz2:
		writeErr = archiveBzip2(src, dst, cfg.CompressionLevel)
	case config.ArchiveXz:
		writeErr = archiveXz(src, dst)
	case config.ArchiveTar:
		writeErr = archiveTar(src, dst)
	default:
		writeErr = fmt.Errorf("unknown archive type %q", cfg.Type)
	}
	if writeErr != nil {
		return writeErr
	}

	return os.Remove(src)
}

func archiveZip(src, dst string, level int) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, clampLevel(level, flate.NoCompression, flate.BestCompression))
	})

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   filepath.Base(src),
		Method: zip.Deflate,
	})
	if err != nil {
		zw.Close()
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func archiveGzip(src, dst string, level int) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	gw, err := gzip.NewWriterLevel(out, clampLevel(level, gzip.NoCompression, gzip.BestCompression))
	if err != nil {
		return err
	}
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

func archiveBzip2(src, dst string, level int) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	bw, err := bzip2.NewWriter(out, &bzip2.WriterConfig{Level: clampLevel(level, 1, 9)})
	if err != nil {
		return err
	}
	if _, err := io.Copy(bw, in); err != nil {
		bw.Close()
		return err
	}
	return bw.Close()
}

func archiveXz(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	xw, err := xz.NewWriter(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(xw, in); err != nil {
		xw.Close()
		return err
	}
	return xw.Close()
}

// archiveTar writes an uncompressed tar, per spec.md §4.4 ("tar is
// uncompressed concatenation").
func archiveTar(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	tw := tar.NewWriter(out)
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		tw.Close()
		return err
	}
	hdr.Name = filepath.Base(src)
	if err := tw.WriteHeader(hdr); err != nil {
		tw.Close()
		return err
	}
	if _, err := io.Copy(tw, in); err != nil {
		tw.Close()
		return err
	}
	return tw.Close()
}

func clampLevel(level, min, max int) int {
	if level < min {
		return min
	}
	if level > max {
		return max
	}
	return level
}

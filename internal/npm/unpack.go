package npm

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/executejs/backend/internal/shared/paths"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
)

// maxEntrySize bounds a single extracted file.
const maxEntrySize = 512 << 20

// unpack extracts a gzip tarball into dest. Registry tarballs nest everything
// under one top-level folder, usually "package/" but not always, so the first
// path component is stripped and dest takes its place.
func unpack(ctx context.Context, data []byte, dest string) (int, error) {
	if mt := mimetype.Detect(data); !mt.Is("application/gzip") {
		return 0, fmt.Errorf("%w: payload detected as %s, want gzip", ErrInvalidArchive, mt.String())
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	defer gz.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}

	tr := tar.NewReader(gz)
	files := 0
	for {
		if err := ctx.Err(); err != nil {
			return files, fmt.Errorf("extraction cancelled: %w", err)
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return files, fmt.Errorf("%w: read tar: %w", ErrInvalidArchive, err)
		}

		rel := stripRoot(header.Name, header.Typeflag == tar.TypeDir)
		if rel == "" {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if !paths.Within(dest, target) {
			return files, fmt.Errorf("%w: %s", ErrUnsafeEntry, header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, fmt.Errorf("create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(tr, target, header); err != nil {
				return files, err
			}
			files++
		default:
			// links, devices and pax records are not materialized
		}
	}

	if files == 0 {
		return 0, fmt.Errorf("%w: archive contains no files", ErrInvalidArchive)
	}
	return files, nil
}

func writeEntry(r io.Reader, target string, header *tar.Header) error {
	if header.Size > maxEntrySize {
		return fmt.Errorf("%w: %s is %d bytes", ErrInvalidArchive, header.Name, header.Size)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}

	mode := header.FileInfo().Mode().Perm() | 0o644
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.CopyN(f, r, header.Size); err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return f.Close()
}

// stripRoot drops the archive's top-level folder from an entry name. A
// top-level directory maps to dest itself and yields "".
func stripRoot(name string, dir bool) string {
	name = path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "./"))
	if name == "." || name == "/" {
		return ""
	}
	if _, rest, ok := strings.Cut(name, "/"); ok {
		return rest
	}
	if dir {
		return ""
	}
	return name
}

package toolchain

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxArchiveFileSize caps a single extracted file. Release archives hold an
// engine binary plus support files; anything past this is a corrupt or
// hostile archive.
const maxArchiveFileSize = int64(2) << 30

// unpackArchive extracts a tar.gz archive into destDir, preserving file
// modes. Entries that would escape destDir are rejected.
func unpackArchive(archivePath, destDir string) error {
	f, err := os.Open(archivePath) // #nosec G304 - archivePath is produced by the downloader
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}

		target, err := sanitizeArchivePath(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := extractFile(tr, target, header.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("extract %s: %w", header.Name, err)
			}
		default:
			// Symlinks and special files are not part of release archives.
			continue
		}
	}
}

func extractFile(tr io.Reader, target string, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode) // #nosec G304 - target is sanitized
	if err != nil {
		return err
	}
	written, err := io.Copy(out, io.LimitReader(tr, maxArchiveFileSize+1))
	if err != nil {
		out.Close()
		return err
	}
	if written > maxArchiveFileSize {
		out.Close()
		return fmt.Errorf("entry exceeds %d bytes", maxArchiveFileSize)
	}
	return out.Close()
}

// sanitizeArchivePath resolves an archive entry name below destDir, rejecting
// absolute paths and parent traversal.
func sanitizeArchivePath(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return filepath.Join(destDir, cleaned), nil
}

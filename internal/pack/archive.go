package pack

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// PackageExtension marks a container as a loadable game package.
const PackageExtension = ".love"

// CompressionLevel selects the deflate effort for the container. Both levels
// produce the same entries in the same order; only the ratio differs.
type CompressionLevel string

const (
	CompressionFast    CompressionLevel = "fast"
	CompressionMaximum CompressionLevel = "maximum"
)

// ParseCompressionLevel validates a user-supplied level name. The empty string
// means the fast default.
func ParseCompressionLevel(name string) (CompressionLevel, error) {
	switch CompressionLevel(name) {
	case "":
		return CompressionFast, nil
	case CompressionFast, CompressionMaximum:
		return CompressionLevel(name), nil
	}
	return "", fmt.Errorf("unknown compression level %q, valid levels are %q and %q", name, CompressionFast, CompressionMaximum)
}

// Artifact is the sealed output file. Once written it is immutable; its
// identity is its path.
type Artifact struct {
	Path string
	Size int64
}

// WriteArchive serializes the selection into a single zip container at
// outPath, appending the package extension when missing. Entries are resolved
// from workDir first (the working copy overlays the source tree) and written
// in sorted order with their relative slash paths. The container is built
// under a partial name and atomically renamed into place; on failure the
// partial file is removed.
func WriteArchive(selection SelectionSet, sourceRoot string, workDir string, outPath string, level CompressionLevel, logger *zap.Logger) (Artifact, error) {
	finalPath := outPath
	if !strings.HasSuffix(finalPath, PackageExtension) {
		finalPath += PackageExtension
	}
	partialPath := finalPath + ".partial"

	out, err := os.Create(partialPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: create %s: %v", ErrArchiveWrite, partialPath, err)
	}

	fail := func(cause error) (Artifact, error) {
		out.Close()
		_ = os.Remove(partialPath)
		return Artifact{}, fmt.Errorf("%w: %v", ErrArchiveWrite, cause)
	}

	flateLevel := flate.BestSpeed
	if level == CompressionMaximum {
		flateLevel = flate.BestCompression
	}

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flateLevel)
	})

	ordered := append(SelectionSet(nil), selection...)
	sort.Strings(ordered)

	for _, rel := range ordered {
		src, openErr := os.Open(resolveEntry(sourceRoot, workDir, rel))
		if openErr != nil {
			return fail(openErr)
		}
		entry, createErr := zw.Create(rel)
		if createErr != nil {
			src.Close()
			return fail(createErr)
		}
		if _, copyErr := io.Copy(entry, src); copyErr != nil {
			src.Close()
			return fail(copyErr)
		}
		src.Close()
	}

	if err := zw.Close(); err != nil {
		return fail(err)
	}
	if err := out.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(partialPath, finalPath); err != nil {
		_ = os.Remove(partialPath)
		return Artifact{}, fmt.Errorf("%w: %v", ErrArchiveWrite, err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: stat %s: %v", ErrArchiveWrite, finalPath, err)
	}

	logger.Debug("archive sealed", zap.String("path", finalPath), zap.Int64("bytes", info.Size()))
	return Artifact{Path: finalPath, Size: info.Size()}, nil
}

// resolveEntry prefers the working copy over the source tree for one entry.
func resolveEntry(sourceRoot string, workDir string, rel string) string {
	if workDir != "" {
		staged := filepath.Join(workDir, filepath.FromSlash(rel))
		if _, err := os.Stat(staged); err == nil {
			return staged
		}
	}
	return filepath.Join(sourceRoot, filepath.FromSlash(rel))
}

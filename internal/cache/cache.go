// Package cache checks the read-only artifact cache before any network
// fetch. The pipeline never writes the cache; population is an operator
// concern.
package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/stacksmith/pkgsmith/internal/artifact"
	"github.com/stacksmith/pkgsmith/internal/utils/logger"
)

// Entry describes a cache hit after its files were copied into the
// working install root.
type Entry struct {
	ArchivePath string
	// Checksum is the sidecar digest. When non-empty it supersedes any
	// caller-supplied checksum.
	Checksum string
	// SignaturePath is the copied sidecar .asc, empty when absent.
	SignaturePath string
}

// Lookup checks cacheDir for the archive named by id and, on a hit,
// copies the archive plus any sidecars into destDir. Returns ok=false on
// a miss.
func Lookup(cacheDir, id, destDir string) (*Entry, bool, error) {
	log := logger.Logger()

	src := filepath.Join(cacheDir, artifact.ArchiveName(id))
	if _, err := os.Stat(src); os.IsNotExist(err) {
		log.Debugf("cache miss for %s", id)
		return nil, false, nil
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, false, fmt.Errorf("creating install root %s: %w", destDir, err)
	}

	dest := filepath.Join(destDir, artifact.ArchiveName(id))
	if err := copyFile(src, dest); err != nil {
		return nil, false, fmt.Errorf("copying cached archive: %w", err)
	}
	log.Infof("Using cached archive %s", src)

	entry := &Entry{ArchivePath: dest}

	sumPath := filepath.Join(cacheDir, artifact.ChecksumName(id))
	if data, err := os.ReadFile(sumPath); err == nil {
		// Sidecar may carry a trailing newline or a "<digest>  <file>" line.
		if fields := strings.Fields(string(data)); len(fields) > 0 {
			entry.Checksum = fields[0]
			log.Debugf("cache provided checksum %s", entry.Checksum)
		}
	}

	sigSrc := filepath.Join(cacheDir, artifact.SignatureName(id))
	if _, err := os.Stat(sigSrc); err == nil {
		sigDest := filepath.Join(destDir, artifact.SignatureName(id))
		if err := copyFile(sigSrc, sigDest); err != nil {
			return nil, false, fmt.Errorf("copying cached signature: %w", err)
		}
		entry.SignaturePath = sigDest
	}

	return entry, true, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dest, err)
	}
	return nil
}

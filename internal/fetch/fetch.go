// Package fetch retrieves artifacts from the release channel. It is the
// only network-dependent part of the pipeline.
package fetch

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/stacksmith/pkgsmith/internal/artifact"
	"github.com/stacksmith/pkgsmith/internal/utils/logger"
	"github.com/stacksmith/pkgsmith/internal/utils/network"
)

// ErrNotFound means neither the canonical nor the fallback identifier is
// published in the release bucket.
var ErrNotFound = errors.New("package not found")

// Resolved names the identifier that was actually downloaded. When the
// canonical form is missing remotely, ID carries the fallback form and
// every downstream step must use it.
type Resolved struct {
	ID   string
	Path string
}

// Fetcher downloads artifacts from one release bucket.
type Fetcher struct {
	client  *http.Client
	baseURL string
	bucket  string
}

// New builds a Fetcher for the given release host and bucket.
func New(baseURL, bucket string) *Fetcher {
	return &Fetcher{
		client:  network.NewSecureHTTPClient(),
		baseURL: baseURL,
		bucket:  bucket,
	}
}

// Fetch downloads the artifact into destDir. The canonical identifier is
// tried first; a single retry under the distribution-agnostic fallback
// form follows. This is a two-branch decision, not a retry loop, and no
// other failures are retried.
func (f *Fetcher) Fetch(id artifact.Identifier, destDir string) (*Resolved, error) {
	log := logger.Logger()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("creating install root %s: %w", destDir, err)
	}

	canonical := id.Canonical()
	dest := filepath.Join(destDir, artifact.ArchiveName(canonical))
	if err := f.download(canonical, dest); err == nil {
		return &Resolved{ID: canonical, Path: dest}, nil
	} else {
		log.Warnf("downloading %s failed: %v", canonical, err)
	}

	fallback := id.Fallback()
	log.Infof("Retrying with distribution-agnostic identifier %s", fallback)
	dest = filepath.Join(destDir, artifact.ArchiveName(fallback))
	if err := f.download(fallback, dest); err != nil {
		log.Warnf("downloading %s failed: %v", fallback, err)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id.Base)
	}
	return &Resolved{ID: fallback, Path: dest}, nil
}

// URL renders the remote location of one identifier's archive.
func (f *Fetcher) URL(id string) string {
	return f.baseURL + "/files/" + f.bucket + "/" + artifact.ArchiveName(id)
}

// download writes the remote archive to destPath through a uniquely named
// temp file so an interrupted transfer never leaves a plausible archive.
func (f *Fetcher) download(id, destPath string) error {
	url := f.URL(id)

	resp, err := f.client.Get(url)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: bad status: %s", url, resp.Status)
	}

	tmpPath := destPath + ".tmp-" + uuid.NewString()
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmpPath, err)
	}

	var w io.Writer = out
	if interactive() {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetDescription(fmt.Sprintf("downloading %s", filepath.Base(destPath))),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		defer bar.Finish()
		w = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", tmpPath, err)
	}
	return nil
}

// interactive reports whether a terminal is attached, which selects
// progress display over quiet mode.
func interactive() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// Package pipeline sequences acquisition: platform detection, cache
// lookup, fetch, verification, extraction, installer dispatch, permission
// normalization and ledger recording.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stacksmith/pkgsmith/internal/archive"
	"github.com/stacksmith/pkgsmith/internal/artifact"
	"github.com/stacksmith/pkgsmith/internal/cache"
	"github.com/stacksmith/pkgsmith/internal/config"
	"github.com/stacksmith/pkgsmith/internal/fetch"
	"github.com/stacksmith/pkgsmith/internal/installer"
	"github.com/stacksmith/pkgsmith/internal/ledger"
	"github.com/stacksmith/pkgsmith/internal/permissions"
	"github.com/stacksmith/pkgsmith/internal/platform"
	"github.com/stacksmith/pkgsmith/internal/utils/logger"
)

// Request is one CLI invocation, constructed once and read-only after.
type Request struct {
	Command string // "install" or "unpack"
	Base    string // package name-version, e.g. "nginx-1.9.10-0"
	Args    []string
}

// Run executes the full acquisition pipeline for one artifact. Exactly
// one identifier is active per invocation: if the fetch falls back to the
// distribution-agnostic form, every later step uses that form.
func Run(cfg *config.Config, inst installer.Installer, req Request) error {
	log := logger.Logger()

	desc, err := platform.Detect(cfg.OSFlavour)
	if err != nil {
		return err
	}
	id := artifact.Identifier{Base: req.Base, Arch: desc.Arch, Distro: desc.Distro}

	// The working install root is scoped per run.
	if err := os.RemoveAll(cfg.WorkDir); err != nil {
		return fmt.Errorf("clearing install root %s: %w", cfg.WorkDir, err)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return fmt.Errorf("creating install root %s: %w", cfg.WorkDir, err)
	}

	activeID, archivePath, checksum, sigPath, err := acquire(cfg, id)
	if err != nil {
		return err
	}
	log.Infof("Active identifier: %s", activeID)

	if _, err := archive.List(archivePath); err != nil {
		// Working root is left behind for operator inspection.
		return err
	}
	if checksum != "" {
		if err := archive.VerifyChecksum(archivePath, checksum); err != nil {
			return err
		}
	}
	if cfg.Keyring != "" {
		if sigPath == "" {
			if candidate := filepath.Join(cfg.WorkDir, artifact.SignatureName(activeID)); fileExists(candidate) {
				sigPath = candidate
			}
		}
		if sigPath != "" {
			if err := archive.VerifySignature(archivePath, sigPath, cfg.Keyring); err != nil {
				return err
			}
			log.Infof("Signature of %s verified", activeID)
		} else {
			log.Debugf("no signature sidecar for %s, skipping signature check", activeID)
		}
	}

	if err := archive.Extract(archivePath, cfg.WorkDir); err != nil {
		return err
	}

	runErr := inst.Run(req.Command, activeID, req.Args)
	if runErr == nil && id.BareName() == "git" {
		runErr = installer.FixGitHardLinks(cfg.WorkDir, activeID, cfg.GitDir())
	}
	// Once dispatch happened the working root is removed no matter what.
	if err := os.RemoveAll(cfg.WorkDir); err != nil {
		log.Warnf("removing install root %s: %v", cfg.WorkDir, err)
	}
	if runErr != nil {
		return runErr
	}

	if err := permissions.Normalize(inst, id.BareName(), cfg.DirMode, cfg.NormalizeDirs()); err != nil {
		return err
	}

	return ledger.Append(cfg.LedgerPath(), activeID)
}

// acquire resolves the active identifier and its local archive, via the
// cache when possible, the network otherwise. A cache sidecar checksum
// supersedes the caller-supplied one.
func acquire(cfg *config.Config, id artifact.Identifier) (activeID, archivePath, checksum, sigPath string, err error) {
	log := logger.Logger()
	checksum = cfg.Checksum

	canonical := id.Canonical()
	entry, ok, err := cache.Lookup(cfg.CacheDir, canonical, cfg.WorkDir)
	if err != nil {
		return "", "", "", "", err
	}
	if ok {
		if entry.Checksum != "" {
			checksum = entry.Checksum
		}
		return canonical, entry.ArchivePath, checksum, entry.SignaturePath, nil
	}

	log.Infof("Downloading %s from bucket %s", canonical, cfg.Bucket)
	resolved, err := fetch.New(cfg.BaseURL, cfg.Bucket).Fetch(id, cfg.WorkDir)
	if err != nil {
		return "", "", "", "", err
	}
	return resolved.ID, resolved.Path, checksum, "", nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

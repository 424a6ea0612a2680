// Package permissions reconciles directory modes after an install.
package permissions

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/stacksmith/pkgsmith/internal/installer"
	"github.com/stacksmith/pkgsmith/internal/utils/logger"
)

// Normalize applies mode to the well-known directories plus the package's
// reported install directory. A no-op when mode is empty. Packages named
// with the "-client" suffix ship no server tree, so no package-specific
// directory is created for them.
func Normalize(inst installer.Installer, bareName, mode string, dirs []string) error {
	log := logger.Logger()

	if mode == "" {
		log.Debugf("no directory mode configured, skipping permission normalization")
		return nil
	}
	parsed, err := strconv.ParseUint(mode, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid directory mode %q: %w", mode, err)
	}
	fileMode := os.FileMode(parsed)

	targets := append([]string{}, dirs...)
	if strings.HasSuffix(bareName, "-client") {
		log.Debugf("%s is a client package, no install directory added", bareName)
	} else {
		meta, err := inst.Inspect(bareName)
		if err != nil {
			return fmt.Errorf("querying install directory for %s: %w", bareName, err)
		}
		if meta.InstallDir != "" {
			targets = append(targets, meta.InstallDir)
		}
	}

	var errs error
	for _, dir := range targets {
		if err := os.MkdirAll(dir, fileMode); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("creating %s: %w", dir, err))
			continue
		}
		// MkdirAll applies umask; chmod enforces the exact mode.
		if err := os.Chmod(dir, fileMode); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("setting mode on %s: %w", dir, err))
			continue
		}
		log.Debugf("normalized %s to %s", dir, mode)
	}
	return errs
}

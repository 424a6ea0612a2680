// Package installer dispatches to the external tool that actually places
// files and registers package metadata.
package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sigsyaml "sigs.k8s.io/yaml"

	"github.com/stacksmith/pkgsmith/internal/utils/logger"
	"github.com/stacksmith/pkgsmith/internal/utils/shell"
)

// Metadata is the structured description the installer emits for one
// package. Only installdir is consumed here.
type Metadata struct {
	InstallDir string `json:"installdir"`
}

// Installer is the narrow capability the pipeline needs from the external
// tool. Tests substitute a fake.
type Installer interface {
	Run(command, id string, args []string) error
	Inspect(pkgName string) (Metadata, error)
}

// Exec shells out to the installer binary.
type Exec struct {
	Binary string
	// Home is the directory inspect queries must run from; the tool
	// resolves its registry relative to the invoking user's home.
	Home string
}

// NewExec builds an exec-backed Installer.
func NewExec(binary, home string) *Exec {
	return &Exec{Binary: binary, Home: home}
}

// Run invokes `installer <command> <id> <args...>`, streaming output.
func (e *Exec) Run(command, id string, args []string) error {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, strconv.Quote(arg))
	}
	cmdStr := strings.TrimSpace(fmt.Sprintf("%s %s %s %s", e.Binary, command, id, strings.Join(quoted, " ")))

	if _, err := shell.ExecCmdWithStream(cmdStr, nil); err != nil {
		return fmt.Errorf("installer %s %s: %w", command, id, err)
	}
	return nil
}

// Inspect queries the installer's package metadata. The external tool
// requires the query to run from the user's home directory; the previous
// working directory is restored afterwards.
func (e *Exec) Inspect(pkgName string) (Metadata, error) {
	var meta Metadata

	prev, err := os.Getwd()
	if err != nil {
		return meta, fmt.Errorf("getting working directory: %w", err)
	}
	if err := os.Chdir(e.Home); err != nil {
		return meta, fmt.Errorf("changing to home directory %s: %w", e.Home, err)
	}
	defer func() {
		if err := os.Chdir(prev); err != nil {
			logger.Logger().Warnf("restoring working directory %s: %v", prev, err)
		}
	}()

	out, err := shell.ExecCmd(fmt.Sprintf("%s inspect %s", e.Binary, pkgName), nil)
	if err != nil {
		return meta, fmt.Errorf("installer inspect %s: %w", pkgName, err)
	}

	// The tool emits JSON; sigs.k8s.io/yaml accepts both JSON and YAML.
	if err := sigsyaml.Unmarshal([]byte(out), &meta); err != nil {
		return meta, fmt.Errorf("parsing inspect output for %s: %w", pkgName, err)
	}
	return meta, nil
}

// FixGitHardLinks mirrors the unpacked git tree over destDir with hard
// links preserved. The installer materializes copies instead of links,
// which duplicates several hundred megabytes per git install; overlaying
// the original tree restores the link structure.
func FixGitHardLinks(workDir, id, destDir string) error {
	log := logger.Logger()

	candidates := []string{
		filepath.Join(workDir, id, "files", "git"),
		filepath.Join(workDir, id, "git"),
	}
	var src string
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			src = candidate
			break
		}
	}
	if src == "" {
		log.Warnf("no unpacked git tree found under %s, skipping hard-link fix", workDir)
		return nil
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", destDir, err)
	}
	// cp -a preserves hard links among the copied files; -f overwrites the
	// installer-produced copies.
	if _, err := shell.ExecCmd(fmt.Sprintf("cp -af %q/. %q", src, destDir), nil); err != nil {
		return fmt.Errorf("mirroring git tree to %s: %w", destDir, err)
	}
	log.Infof("Restored hard-linked git tree at %s", destDir)
	return nil
}

// Package platform derives the (distribution, architecture) pair one
// artifact build is selected by.
package platform

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/stacksmith/pkgsmith/internal/utils/logger"
	"github.com/stacksmith/pkgsmith/internal/utils/shell"
)

var (
	// OsReleaseFile is a variable so tests can point it at a fixture.
	OsReleaseFile = "/etc/os-release"
)

const unknown = "unknown"

// Descriptor names one platform. Derived once per run; immutable after.
type Descriptor struct {
	Distro string // e.g. "debian-10"
	Arch   string // e.g. "amd64", "x86_64", "arm64"
}

// amd64Families maps x86_64 hosts to the architecture token the release
// channel publishes under, keyed by distribution-family prefix.
var amd64Families = []struct {
	prefix string
	arch   string
}{
	{"debian", "amd64"},
	{"ubuntu", "amd64"},
	{"centos", "x86_64"},
	{"rhel", "x86_64"},
	{"fedora", "x86_64"},
	{"photon", "x86_64"},
	{"ol", "x86_64"},
	{"amzn", "x86_64"},
}

// Detect produces the platform descriptor. flavourOverride wins over
// os-release detection unless it is empty or the "unknown" sentinel.
func Detect(flavourOverride string) (Descriptor, error) {
	log := logger.Logger()

	distro := flavourOverride
	if distro == "" || distro == unknown {
		var err error
		distro, err = detectDistro()
		if err != nil {
			return Descriptor{}, err
		}
	}

	arch, err := detectArch(distro)
	if err != nil {
		return Descriptor{}, err
	}

	log.Infof("Detected platform: %s/%s", distro, arch)
	return Descriptor{Distro: distro, Arch: arch}, nil
}

// detectDistro reads the os-release file and joins ID with the major
// component of VERSION_ID, e.g. "debian-10". A missing file resolves to
// "unknown" rather than an error.
func detectDistro() (string, error) {
	log := logger.Logger()

	if _, err := os.Stat(OsReleaseFile); os.IsNotExist(err) {
		log.Warnf("%s not found, distribution is %s", OsReleaseFile, unknown)
		return unknown, nil
	}

	file, err := os.Open(OsReleaseFile)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", OsReleaseFile, err)
	}
	defer file.Close()

	var id, versionID string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")

		switch key {
		case "ID":
			id = strings.ToLower(value)
		case "VERSION_ID":
			versionID = value
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading %s: %w", OsReleaseFile, err)
	}

	if id == "" {
		log.Warnf("no ID field in %s, distribution is %s", OsReleaseFile, unknown)
		return unknown, nil
	}

	// Only the major version component participates in the identifier.
	major := strings.SplitN(versionID, ".", 2)[0]
	if major == "" {
		return id, nil
	}
	return id + "-" + major, nil
}

// detectArch reads the raw machine architecture and normalizes it for the
// release channel. aarch64 hosts pass through unchanged; x86_64 hosts map
// through the distribution-family table. Everything else is "unknown".
func detectArch(distro string) (string, error) {
	log := logger.Logger()

	output, err := shell.ExecCmd("uname -m", nil)
	if err != nil {
		return "", fmt.Errorf("failed to get host architecture: %w", err)
	}
	raw := strings.TrimSpace(output)

	switch raw {
	case "aarch64", "arm64":
		return raw, nil
	case "x86_64":
		for _, family := range amd64Families {
			if strings.HasPrefix(distro, family.prefix) {
				return family.arch, nil
			}
		}
		// Unmapped distribution on x86_64 resolves to "unknown" instead of
		// an empty architecture so the failure surfaces in the artifact name.
		log.Warnf("no architecture mapping for distribution %q on x86_64, using %s", distro, unknown)
		return unknown, nil
	default:
		log.Warnf("unrecognized machine architecture %q, using %s", raw, unknown)
		return unknown, nil
	}
}

// Package artifact composes canonical artifact identifiers.
package artifact

import (
	"strings"
	"unicode"
)

// Identifier holds everything needed to name one artifact build.
type Identifier struct {
	Base   string // requested "name-version", e.g. "nginx-1.9.10-0"
	Arch   string // e.g. "amd64"
	Distro string // e.g. "debian-10"
}

// Canonical renders the platform-specific identifier,
// e.g. "nginx-1.9.10-0-linux-amd64-debian-10".
func (id Identifier) Canonical() string {
	return id.Base + "-linux-" + id.Arch + "-" + id.Distro
}

// Fallback renders the identifier with the distribution suffix stripped,
// used when the canonical form is not published.
func (id Identifier) Fallback() string {
	return id.Base + "-linux-" + id.Arch
}

// BareName truncates the base at the first numeric version segment,
// e.g. "mysql-client-5.7.11" -> "mysql-client".
func (id Identifier) BareName() string {
	segments := strings.Split(id.Base, "-")
	var name []string
	for _, segment := range segments {
		if segment != "" && unicode.IsDigit(rune(segment[0])) {
			break
		}
		name = append(name, segment)
	}
	return strings.Join(name, "-")
}

// ArchiveName returns the archive filename for an identifier string.
func ArchiveName(id string) string {
	return id + ".tar.gz"
}

// ChecksumName returns the sidecar checksum filename for an identifier string.
func ChecksumName(id string) string {
	return ArchiveName(id) + ".sha256"
}

// SignatureName returns the sidecar detached-signature filename.
func SignatureName(id string) string {
	return ArchiveName(id) + ".asc"
}

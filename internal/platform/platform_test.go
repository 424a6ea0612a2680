package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stacksmith/pkgsmith/internal/utils/shell"
)

// fakeUname substitutes the architecture probe for the duration of a test.
func fakeUname(t *testing.T, arch string) {
	t.Helper()
	original := shell.ExecCmd
	shell.ExecCmd = func(cmdStr string, envVal []string) (string, error) {
		if cmdStr == "uname -m" {
			return arch + "\n", nil
		}
		return original(cmdStr, envVal)
	}
	t.Cleanup(func() { shell.ExecCmd = original })
}

func writeOsRelease(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "os-release")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing os-release fixture: %v", err)
	}
	original := OsReleaseFile
	OsReleaseFile = path
	t.Cleanup(func() { OsReleaseFile = original })
}

func TestDetectDebianAmd64(t *testing.T) {
	fakeUname(t, "x86_64")
	writeOsRelease(t, "ID=debian\nVERSION_ID=\"10\"\nNAME=\"Debian GNU/Linux\"\n")

	desc, err := Detect("")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if desc.Distro != "debian-10" {
		t.Errorf("expected debian-10, got %q", desc.Distro)
	}
	if desc.Arch != "amd64" {
		t.Errorf("expected amd64, got %q", desc.Arch)
	}
}

func TestDetectMajorVersionOnly(t *testing.T) {
	fakeUname(t, "x86_64")
	writeOsRelease(t, "ID=centos\nVERSION_ID=\"7.9.2009\"\n")

	desc, err := Detect("")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if desc.Distro != "centos-7" {
		t.Errorf("expected centos-7, got %q", desc.Distro)
	}
	if desc.Arch != "x86_64" {
		t.Errorf("expected x86_64, got %q", desc.Arch)
	}
}

func TestDetectArchTable(t *testing.T) {
	cases := []struct {
		raw    string
		distro string
		want   string
	}{
		{"x86_64", "debian-10", "amd64"},
		{"x86_64", "ubuntu-20", "amd64"},
		{"x86_64", "centos-7", "x86_64"},
		{"x86_64", "rhel-8", "x86_64"},
		{"x86_64", "fedora-33", "x86_64"},
		{"x86_64", "photon-4", "x86_64"},
		{"x86_64", "ol-8", "x86_64"},
		{"x86_64", "amzn-2", "x86_64"},
		{"x86_64", "gentoo-2", "unknown"},
		{"aarch64", "debian-10", "aarch64"},
		{"arm64", "debian-10", "arm64"},
		{"i686", "debian-10", "unknown"},
		{"riscv64", "centos-7", "unknown"},
	}
	for _, tc := range cases {
		fakeUname(t, tc.raw)
		got, err := detectArch(tc.distro)
		if err != nil {
			t.Fatalf("detectArch(%s/%s) failed: %v", tc.raw, tc.distro, err)
		}
		if got != tc.want {
			t.Errorf("detectArch(%s, %s) = %q, want %q", tc.raw, tc.distro, got, tc.want)
		}
	}
}

func TestDetectFlavourOverrideWins(t *testing.T) {
	fakeUname(t, "x86_64")
	writeOsRelease(t, "ID=debian\nVERSION_ID=\"10\"\n")

	desc, err := Detect("rhel-8")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if desc.Distro != "rhel-8" {
		t.Errorf("override should win, got %q", desc.Distro)
	}
	if desc.Arch != "x86_64" {
		t.Errorf("arch should follow override family, got %q", desc.Arch)
	}
}

func TestDetectUnknownSentinelIgnored(t *testing.T) {
	fakeUname(t, "x86_64")
	writeOsRelease(t, "ID=debian\nVERSION_ID=\"10\"\n")

	desc, err := Detect("unknown")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if desc.Distro != "debian-10" {
		t.Errorf("sentinel override should fall back to detection, got %q", desc.Distro)
	}
}

func TestDetectMissingOsRelease(t *testing.T) {
	fakeUname(t, "x86_64")
	original := OsReleaseFile
	OsReleaseFile = filepath.Join(t.TempDir(), "does-not-exist")
	t.Cleanup(func() { OsReleaseFile = original })

	desc, err := Detect("")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if desc.Distro != "unknown" {
		t.Errorf("expected unknown distribution, got %q", desc.Distro)
	}
}

// Package archive verifies and unpacks artifact archives.
package archive

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/stacksmith/pkgsmith/internal/utils/logger"
	"github.com/stacksmith/pkgsmith/internal/utils/shell"
)

var (
	// ErrCorruptArchive means the archive could not be read at all.
	ErrCorruptArchive = errors.New("corrupt package")
	// ErrChecksumMismatch means the archive bytes do not match the
	// declared digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// openReader wraps the archive file in the decompressor its magic bytes
// select. Artifacts are gzip as published; xz is accepted for
// operator-provided cache entries.
func openReader(f *os.File) (io.ReadCloser, error) {
	magic := make([]byte, len(xzMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, fmt.Errorf("reading magic bytes: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding archive: %w", err)
	}

	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := kgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return zr, nil
	case bytes.HasPrefix(magic, xzMagic):
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return io.NopCloser(xr), nil
	default:
		return nil, fmt.Errorf("unrecognized compression magic %x", magic)
	}
}

// List streams the archive and returns its entry names. Any read failure
// reports the archive as corrupt. This doubles as the well-formedness
// check, so it must walk every entry.
func List(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	zr, err := openReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArchive, filepath.Base(path), err)
	}
	defer zr.Close()

	var names []string
	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArchive, filepath.Base(path), err)
		}
		names = append(names, header.Name)
	}
	return names, nil
}

// VerifyChecksum computes the archive's sha256 digest and compares it
// against the declared hex value, case-insensitively.
func VerifyChecksum(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hashing archive: %w", err)
	}
	actual := hex.EncodeToString(h.Sum(nil))

	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w for %s: expected %s, actual %s",
			ErrChecksumMismatch, filepath.Base(path), strings.ToLower(expected), actual)
	}
	return nil
}

// VerifySignature checks a detached OpenPGP signature against the given
// keyring file. Armored and binary forms are both accepted.
func VerifySignature(path, sigPath, keyringPath string) error {
	keyFile, err := os.Open(keyringPath)
	if err != nil {
		return fmt.Errorf("opening keyring: %w", err)
	}
	defer keyFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyFile)
	if err != nil {
		if _, serr := keyFile.Seek(0, io.SeekStart); serr != nil {
			return fmt.Errorf("rewinding keyring: %w", serr)
		}
		keyring, err = openpgp.ReadKeyRing(keyFile)
		if err != nil {
			return fmt.Errorf("reading keyring: %w", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	sig, err := os.Open(sigPath)
	if err != nil {
		return fmt.Errorf("opening signature: %w", err)
	}
	defer sig.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, f, sig, nil)
	if err != nil {
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return fmt.Errorf("rewinding archive: %w", serr)
		}
		if _, serr := sig.Seek(0, io.SeekStart); serr != nil {
			return fmt.Errorf("rewinding signature: %w", serr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, f, sig, nil)
	}
	if err != nil {
		return fmt.Errorf("verifying signature of %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Extract unpacks the archive into destDir. bsdtar is preferred when
// present because plain tar extraction of archives with very large file
// counts is known to fail on overlay filesystems. The built-in extractor
// is the fallback.
func Extract(path, destDir string) error {
	log := logger.Logger()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating dest dir: %w", err)
	}

	if shell.IsCommandExist("bsdtar") {
		log.Debugf("extracting %s with bsdtar", filepath.Base(path))
		if _, err := shell.ExecCmd(fmt.Sprintf("bsdtar -xf %q -C %q", path, destDir), nil); err != nil {
			return fmt.Errorf("extracting %s: %w", path, err)
		}
		return nil
	}

	log.Debugf("bsdtar not available, extracting %s with built-in extractor", filepath.Base(path))
	return extractBuiltin(path, destDir)
}

func extractBuiltin(path, destDir string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	zr, err := openReader(f)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", path, err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}

		target := filepath.Join(destDir, header.Name)

		// Path traversal guard.
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("creating parent dir for %s: %w", target, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("creating file %s: %w", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("writing file %s: %w", target, err)
			}
			out.Close()

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("creating parent dir for %s: %w", target, err)
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink %s: %w", target, err)
			}

		case tar.TypeLink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("creating parent dir for %s: %w", target, err)
			}
			os.Remove(target)
			if err := os.Link(filepath.Join(destDir, header.Linkname), target); err != nil {
				return fmt.Errorf("creating hard link %s: %w", target, err)
			}

		default:
			// Skip device nodes and other special entries.
			continue
		}
	}
	return nil
}

// Package ledger records which artifact identifiers were installed.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
)

// Append adds one identifier line to the ledger, creating the file and
// its parents if needed. Append-only, no dedup, no locking; concurrent
// invocations are out of scope.
func Append(path, id string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, id); err != nil {
		return fmt.Errorf("writing to ledger %s: %w", path, err)
	}
	return nil
}

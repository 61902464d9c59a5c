package util

import (
	"fmt"
	"os"
)

// EnsureDir creates path if needed and checks that files can be created in it.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(path, ".probe-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", path, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

package kit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Clear removes every store under dir whose name contains none of
// exceptFor. A missing dir is not an error.
func Clear(dir string, exceptFor []string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if keep(e.Name(), exceptFor) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

func keep(name string, exceptFor []string) bool {
	for _, x := range exceptFor {
		if strings.Contains(name, x) {
			return true
		}
	}
	return false
}

package scaffold

import (
	"fmt"
	"os"
)

// CheckExisting returns an error if axon.toml or capabilities/ already
// exist, so `axon init` without --force doesn't clobber a live project.
func CheckExisting() error {
	var existing []string

	if _, err := os.Stat("axon.toml"); err == nil {
		existing = append(existing, "axon.toml")
	}
	if info, err := os.Stat("capabilities"); err == nil && info.IsDir() {
		existing = append(existing, "capabilities/")
	}

	if len(existing) == 0 {
		return nil
	}

	msg := "project already initialized\n\nfound existing"
	if len(existing) == 1 {
		msg += fmt.Sprintf(": %s", existing[0])
	} else {
		msg += " files:\n"
		for _, f := range existing {
			msg += fmt.Sprintf("  - %s\n", f)
		}
	}
	msg += "\nuse 'axon init --force' to reinitialize (overwrites existing configuration)"
	return fmt.Errorf("%s", msg)
}

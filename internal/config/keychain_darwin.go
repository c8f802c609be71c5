//go:build darwin

package config

import (
	"fmt"
	"os/exec"
)

// security(1) exits 44 when no matching item exists.
const errSecItemNotFound = 44

func keychainGet(service, account string) ([]byte, error) {
	out, err := exec.Command("security", "find-generic-password", "-s", service, "-a", account, "-w").Output()
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == errSecItemNotFound {
		return nil, fmt.Errorf("no keychain item for %s/%s", service, account)
	}
	return out, err
}

// keychainSet adds or updates (-U) the generic password item.
func keychainSet(service, account, value string) error {
	out, err := exec.Command("security", "add-generic-password", "-U", "-s", service, "-a", account, "-w", value).CombinedOutput()
	if err != nil {
		return fmt.Errorf("storing %s/%s in keychain: %w: %s", service, account, err, out)
	}
	return nil
}

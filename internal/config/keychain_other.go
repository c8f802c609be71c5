//go:build !darwin

package config

import (
	"fmt"
	"path/filepath"
)

// Without a system keychain, secrets live in a 0600 file next to the data
// directory, keyed "service/account".
func secretsFile() *jsonFile {
	return openJSONFile(xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), "secrets.json"))
}

func keychainGet(service, account string) ([]byte, error) {
	v, ok := secretsFile().data[service+"/"+account].(string)
	if !ok {
		return nil, fmt.Errorf("no secret stored for %s/%s", service, account)
	}
	return []byte(v), nil
}

func keychainSet(service, account, value string) error {
	return secretsFile().set(service+"/"+account, value)
}

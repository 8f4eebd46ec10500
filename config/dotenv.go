package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// LoadDotEnv reads KEY=VALUE lines from a .env style file into the process
// environment. A missing file is not an error, so local runs can rely on it
// while deployments set the environment directly.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if err := os.Setenv(key, value); err != nil {
			return errors.Wrapf(err, "setting %s", key)
		}
	}
	return errors.Wrapf(scanner.Err(), "reading %s", path)
}

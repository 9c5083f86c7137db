package config

import (
	"github.com/BurntSushi/toml"

	"github.com/teranos/boss/errors"
)

// CheckFile decodes the TOML file at path strictly and returns the keys
// that do not map onto any configuration field. Viper silently ignores such
// keys, so a typo like `pol_interval_ms` would otherwise go unnoticed.
func CheckFile(path string) ([]string, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	var unknown []string
	for _, key := range md.Undecoded() {
		unknown = append(unknown, key.String())
	}
	return unknown, nil
}

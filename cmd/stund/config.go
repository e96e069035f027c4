// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/BurntSushi/toml"
)

// config is stund's TOML configuration, loaded from the path given by
// -config. Users holds short-term credential passwords keyed by
// username; a nil/empty Users leaves the server unauthenticated.
type config struct {
	Listen      string            `toml:"listen"`
	Fingerprint bool              `toml:"fingerprint"`
	Software    string            `toml:"software"`
	Users       map[string]string `toml:"users"`
}

func defaultConfig() config {
	return config{
		Listen:   "0.0.0.0:3478",
		Software: "netreap/stund",
	}
}

// loadConfig reads a TOML document at path into defaultConfig's
// defaults, leaving them untouched for any field the document omits.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}

// Package config holds the built-in configuration defaults.
package config

import _ "embed"

// Default is the embedded default configuration.
//
//go:embed default.yaml
var Default []byte

// Package wordsynth provides embedded assets for the wordsynth generator.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultConfigTOML], which seeds the work directory on first run.
package wordsynth

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, embedded at
// build time. cmd/wordsynth copies it into the work directory when no
// wordsynth.toml exists yet.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte

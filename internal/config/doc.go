// Package config loads, normalizes, and validates framewatch configuration.
//
// Values come from a TOML file layered over Default(). Paths are expanded,
// environment overrides applied, and every section validated before the
// pipeline is constructed, so rate or capacity mistakes surface as
// configuration errors at startup instead of stalls at runtime.
package config

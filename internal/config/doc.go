// Package config loads, defaults, and validates the clipforge TOML
// configuration, layering secrets from the process environment (and an
// optional .env file) over the file contents.
package config

// Package config loads and validates the YAML configuration of the
// capture service.
package config

// Package config loads relay configuration from an optional YAML file, a .env
// file and the process environment, in that order of increasing precedence.
package config

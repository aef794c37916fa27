// Package config resolves the settings of the envsmith command from multiple
// sources with precedence: CLI flags > environment variables > YAML settings
// file > defaults. The resolved settings are validated before use.
package config

package secrets

import (
	"os"
	"strings"
	"unicode"
)

// Provider turns a scheme://rest URI into a secret value.
type Provider interface {
	Scheme() string
	Resolve(uri string) (string, error)
}

type funcProvider struct {
	scheme  string
	resolve func(uri string) (string, error)
}

// ProviderFunc adapts fn into a Provider for scheme.
func ProviderFunc(scheme string, fn func(uri string) (string, error)) Provider {
	return &funcProvider{scheme: scheme, resolve: fn}
}

func (p *funcProvider) Scheme() string {
	return p.scheme
}

func (p *funcProvider) Resolve(uri string) (string, error) {
	return p.resolve(uri)
}

func (p *funcProvider) valid() bool {
	return p.resolve != nil
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider returns an EnvProvider backed by os.LookupEnv.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

// Scheme returns "env".
func (p *EnvProvider) Scheme() string {
	return "env"
}

// Resolve accepts env://NAME or secret://env/NAME.
func (p *EnvProvider) Resolve(uri string) (string, error) {
	name, ok := trimSchemePrefix(uri, "env")
	if !ok {
		return "", resolutionErrorf(uri, "invalid env URI format")
	}
	if name == "" {
		return "", resolutionErrorf(uri, "empty environment variable name in URI")
	}

	lookup := p.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(name)
	if !ok {
		return "", resolutionErrorf(uri, "environment variable %q is not set", name)
	}
	return value, nil
}

// FileProvider reads secrets from files on disk.
type FileProvider struct{}

// NewFileProvider returns a FileProvider.
func NewFileProvider() *FileProvider {
	return &FileProvider{}
}

// Scheme returns "file".
func (p *FileProvider) Scheme() string {
	return "file"
}

// Resolve accepts file:///path or secret://file/path and returns the file
// content without trailing whitespace.
func (p *FileProvider) Resolve(uri string) (string, error) {
	path, ok := trimSchemePrefix(uri, "file")
	if !ok {
		return "", resolutionErrorf(uri, "invalid file URI format")
	}
	if path == "" {
		return "", resolutionErrorf(uri, "empty file path in URI")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", resolutionErrorf(uri, "secret file does not exist: %s", path)
		}
		return "", resolutionErrorf(uri, "read secret file %s: %w", path, err)
	}
	return strings.TrimRightFunc(string(data), unicode.IsSpace), nil
}

func trimSchemePrefix(uri, scheme string) (string, bool) {
	if rest, ok := strings.CutPrefix(uri, scheme+"://"); ok {
		return rest, true
	}
	if rest, ok := strings.CutPrefix(uri, secretPrefix+scheme+"/"); ok {
		return rest, true
	}
	return "", false
}

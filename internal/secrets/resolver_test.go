package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestResolveMaybePassesThroughPlainValues(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	for _, value := range []string{"plain", "", "https://example.com", "vault://x"} {
		got, err := r.ResolveMaybe(value)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", value, err)
		}
		if got != value {
			t.Fatalf("expected %q unchanged, got %q", value, got)
		}
	}
}

func TestResolveEnvSecret(t *testing.T) {
	t.Setenv("SECRETS_TEST_TOKEN", "s3cr3t")

	r := NewResolver()
	for _, uri := range []string{"env://SECRETS_TEST_TOKEN", "secret://env/SECRETS_TEST_TOKEN"} {
		got, err := r.ResolveMaybe(uri)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", uri, err)
		}
		if got != "s3cr3t" {
			t.Fatalf("expected s3cr3t for %s, got %q", uri, got)
		}
	}
}

func TestResolveEnvSecretFailures(t *testing.T) {
	t.Parallel()

	r := NewResolver()

	_, err := r.ResolveMaybe("env://SECRETS_TEST_DEFINITELY_MISSING")
	if !errors.Is(err, ErrSecretResolution) {
		t.Fatalf("expected ErrSecretResolution, got %v", err)
	}
	if !strings.Contains(err.Error(), "not set") {
		t.Fatalf("expected 'not set' in error, got %v", err)
	}

	_, err = r.ResolveMaybe("env://")
	if err == nil || !strings.Contains(err.Error(), "empty environment variable name") {
		t.Fatalf("expected empty name error, got %v", err)
	}
}

func TestResolveFileSecret(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  file-secret \n\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	r := NewResolver()
	got, err := r.ResolveMaybe("file://" + path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "  file-secret" {
		t.Fatalf("expected trailing whitespace trimmed, got %q", got)
	}

	got, err = r.ResolveMaybe("secret://file/" + path)
	if err != nil {
		t.Fatalf("unexpected error for secret:// form: %v", err)
	}
	if got != "  file-secret" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestResolveFileSecretFailures(t *testing.T) {
	t.Parallel()

	r := NewResolver()

	_, err := r.ResolveMaybe("file:///nonexistent")
	if !errors.Is(err, ErrSecretResolution) || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected 'does not exist' resolution error, got %v", err)
	}

	_, err = r.ResolveMaybe("file://")
	if err == nil || !strings.Contains(err.Error(), "empty file path") {
		t.Fatalf("expected empty path error, got %v", err)
	}
}

func TestResolveUnknownScheme(t *testing.T) {
	t.Parallel()

	_, err := NewResolver().ResolveMaybe("secret://vault/db/password")
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
	if !errors.Is(err, ErrSecretResolution) {
		t.Fatalf("expected unknown scheme to classify as resolution error, got %v", err)
	}
}

func TestResolveMalformedSecretURI(t *testing.T) {
	t.Parallel()

	_, err := NewResolver().ResolveMaybe("secret://vault")
	if !errors.Is(err, ErrMalformedURI) {
		t.Fatalf("expected ErrMalformedURI, got %v", err)
	}
}

func TestRegisterCustomProvider(t *testing.T) {
	t.Parallel()

	var seen string
	r := NewResolver()
	err := r.Register(ProviderFunc("vault", func(uri string) (string, error) {
		seen = uri
		return "from-vault", nil
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := r.ResolveMaybe("secret://vault/db/password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-vault" {
		t.Fatalf("expected from-vault, got %q", got)
	}
	if seen != "vault://db/password" {
		t.Fatalf("expected provider to receive reconstructed URI, got %q", seen)
	}
}

func TestRegisterLastWins(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	for _, value := range []string{"first", "second"} {
		value := value
		if err := r.Register(ProviderFunc("env", func(string) (string, error) { return value, nil })); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := r.ResolveMaybe("env://ANY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "second" {
		t.Fatalf("expected last registration to win, got %q", got)
	}
}

func TestRegisterRejectsInvalidProviders(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	cases := map[string]Provider{
		"nil":          nil,
		"empty scheme": ProviderFunc("", func(string) (string, error) { return "", nil }),
		"nil resolve":  ProviderFunc("vault", nil),
	}
	for name, provider := range cases {
		if err := r.Register(provider); !errors.Is(err, ErrInvalidProvider) {
			t.Fatalf("%s: expected ErrInvalidProvider, got %v", name, err)
		}
	}
}

func TestProviderErrorsAreWrapped(t *testing.T) {
	t.Parallel()

	cause := errors.New("backend down")
	r := NewResolver()
	_ = r.Register(ProviderFunc("vault", func(string) (string, error) { return "", cause }))

	_, err := r.ResolveMaybe("secret://vault/key")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %T", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected original cause to be preserved, got %v", err)
	}
	if resErr.Scheme != "vault" {
		t.Fatalf("expected scheme vault, got %q", resErr.Scheme)
	}
}

func TestProviderResolutionErrorsPropagateUnchanged(t *testing.T) {
	t.Parallel()

	original := &ResolutionError{URI: "vault://key", Err: errors.New("denied")}
	r := NewResolver()
	_ = r.Register(ProviderFunc("vault", func(string) (string, error) { return "", original }))

	_, err := r.ResolveMaybe("secret://vault/key")
	if err != original {
		t.Fatalf("expected provider error to propagate unchanged, got %v", err)
	}
}

func TestResolversAreIsolated(t *testing.T) {
	t.Parallel()

	a := NewResolver()
	b := NewResolver()
	_ = a.Register(ProviderFunc("vault", func(string) (string, error) { return "x", nil }))

	if _, ok := b.Provider("vault"); ok {
		t.Fatalf("expected registration on one resolver not to leak into another")
	}
	if want := []string{"env", "file"}; !slices.Equal(b.Schemes(), want) {
		t.Fatalf("expected built-in schemes %v, got %v", want, b.Schemes())
	}
	if Default() != Default() {
		t.Fatalf("expected Default to return a shared instance")
	}
}

func TestResolveEnvSecretWithCustomLookup(t *testing.T) {
	t.Parallel()

	lookup := func(name string) (string, bool) {
		if name == "TOKEN" {
			return "from-lookup", true
		}
		return "", false
	}
	r := NewResolver(WithEnvLookup(lookup))

	got, err := r.ResolveMaybe("env://TOKEN")
	if err != nil {
		t.Fatalf("ResolveMaybe returned error: %v", err)
	}
	if got != "from-lookup" {
		t.Fatalf("expected value from lookup, got %q", got)
	}
	if _, err := r.ResolveMaybe("secret://env/OTHER"); !errors.Is(err, ErrSecretResolution) {
		t.Fatalf("expected ErrSecretResolution, got %v", err)
	}
}

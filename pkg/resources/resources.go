// Package resources resolves the files a deployment test suite refers to:
// blueprints, reference configurations and SSH keys.
package resources

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"golang.org/x/crypto/ssh"

	"github.com/liliang-cn/deploytest/pkg/config"
	"github.com/liliang-cn/deploytest/pkg/logging"
	"github.com/liliang-cn/deploytest/pkg/types"
)

// Resolver locates resources below a resources directory and reference
// configurations below a configurations directory.
type Resolver struct {
	ResourcesDir      string
	ConfigurationsDir string
}

// Env is the part of a test environment key resolution depends on.
type Env struct {
	ProviderBootstrap bool
	ResourcesPrefix   string
}

// NewResolver builds a Resolver from loaded settings
func NewResolver(settings config.Settings) *Resolver {
	return &Resolver{
		ResourcesDir:      settings.ResourcesDir,
		ConfigurationsDir: settings.ConfigurationsDir,
	}
}

// EnvFromSettings extracts the key resolution environment from settings
func EnvFromSettings(settings config.Settings) Env {
	return Env{
		ProviderBootstrap: settings.ProviderBootstrap,
		ResourcesPrefix:   settings.ResourcesPrefix,
	}
}

// BlueprintPath returns the path of a blueprint. blueprintsDir defaults to
// <resources>/blueprints. An absolute name is returned as given; a relative
// one is resolved inside the directory and cannot escape it through ".."
// or symlinks.
func (r *Resolver) BlueprintPath(name, blueprintsDir string) (string, error) {
	if name == "" {
		return "", types.NewValidationError("name", name, "blueprint name must not be empty")
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}
	if blueprintsDir == "" {
		blueprintsDir = filepath.Join(r.ResourcesDir, "blueprints")
	}

	path, err := securejoin.SecureJoin(blueprintsDir, name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve blueprint %s: %w", name, err)
	}
	return path, nil
}

// ReferenceConfig loads <configurations>/<name> as YAML
func (r *Resolver) ReferenceConfig(name string) (map[string]interface{}, error) {
	path, err := securejoin.SecureJoin(r.ConfigurationsDir, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration %s: %w", name, err)
	}
	return config.LoadYAML(path)
}

// FixKeyPath prefixes the base name of keypath:
// "keys/manager.pem" becomes "keys/<prefix>manager.pem".
func FixKeyPath(prefix, keypath string) string {
	dir, file := filepath.Split(keypath)
	return dir + prefix + file
}

// ActualKeyPath resolves keypath to an absolute path. Provider bootstraps
// also prefix the key file name with the resources prefix. A missing file
// is an ErrFileNotFound when raiseOnMissing is set, otherwise "" and nil.
func ActualKeyPath(env Env, keypath string, raiseOnMissing bool) (string, error) {
	if env.ProviderBootstrap {
		keypath = FixKeyPath(env.ResourcesPrefix, keypath)
	}

	expanded, err := ExpandUser(keypath)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", keypath, err)
	}

	if _, err := os.Stat(abs); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to stat key file %s: %w", abs, err)
		}
		if raiseOnMissing {
			return "", fmt.Errorf("%w: key file %s does not exist", types.ErrFileNotFound, abs)
		}
		logger := logging.GetLogger("resources")
		logger.Debug().Str("path", abs).Msg("Key file missing")
		return "", nil
	}
	return abs, nil
}

// ExpandUser replaces a leading "~" with the home directory
func ExpandUser(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// LoadSigner parses the private key at keypath
func LoadSigner(keypath string) (ssh.Signer, error) {
	keyData, err := os.ReadFile(keypath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: key file %s does not exist", types.ErrFileNotFound, keypath)
		}
		return nil, fmt.Errorf("failed to read key file %s: %w", keypath, err)
	}

	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, types.NewParseError(keypath, err)
	}
	return signer, nil
}

// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `<root>/conf/.env`.
  2. Optional `<root>/conf/signin.yaml`.
  3. Environment variables prefixed `SIGNIN_`, where `__` maps to “.”
     (e.g., `SIGNIN_AUTH__ENDPOINT → auth.endpoint`).

After merging, the tree is unmarshalled into typed structs, defaults are
filled, `vault:` references are resolved, the result is validated, and it is
cached in an `atomic.Pointer` for lock-free reads.  `Reload()` simply calls
`Load()` again and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans – root discovery, YAML read, env overlay.
  • ERROR spans – YAML parse, env overlay, unmarshal, resolve, validation.
  • INFO  span  – final “config loaded” with key highlights.
  • Logs use the global sugared logger (`zap.S()`), which is a no-op until
    the file logger is installed.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

const (
	envPrefix = "SIGNIN_"
	fileName  = "signin.yaml"
)

var current atomic.Pointer[Config]

// SecretResolver turns `vault:` references into plain values.
// *vault.Client satisfies it.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

/*──────────────────────────── root discovery ───────────────────────────────*/

// RootDir resolves SIGNIN_ROOT or climbs directories until conf/signin.yaml
// is found.  Falls back to the executable heuristic for a bin/ layout.
func RootDir() string {
	if r := os.Getenv("SIGNIN_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", fileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, and env overrides, resolves secrets through res
// (nil skips resolution), validates, and caches the Config.
func Load(ctx context.Context, res SecretResolver) (*Config, error) {
	root := RootDir()
	zap.S().Debugw("config root resolved", "root", root)

	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", fileName)
	if _, err := os.Stat(yamlPath); err == nil {
		if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
			zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
			return nil, fmt.Errorf("load %s: %w", yamlPath, err)
		}
		zap.S().Debugw("config yaml loaded", "file", yamlPath)
	}

	// SIGNIN_AUTH__ENDPOINT → auth.endpoint
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Paths.Root = root
	cfg.applyDefaults()

	if err := resolveSecrets(ctx, &cfg, res); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"auth_endpoint", cfg.Auth.Endpoint,
		"audit", cfg.Database.DSN != "",
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// envKey maps SIGNIN_SESSION__IDLE_TTL to session.idle_ttl.
func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	if s == "ROOT" {
		return "" // consumed by RootDir, not part of the tree
	}
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// resolveSecrets swaps vault references for their values in place.
func resolveSecrets(ctx context.Context, cfg *Config, res SecretResolver) error {
	fields := map[string]*string{
		"csrf.key":     &cfg.CSRF.Key,
		"database.dsn": &cfg.Database.DSN,
	}
	for name, p := range fields {
		if !strings.HasPrefix(*p, "vault:") {
			continue
		}
		if res == nil {
			return fmt.Errorf("%s: vault reference but no vault client configured", name)
		}
		val, err := res.Resolve(ctx, *p)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*p = val
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config { return current.Load() }

func Reload(ctx context.Context, res SecretResolver) error {
	_, err := Load(ctx, res)
	return err
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"hostboot/internal/config"
	"hostboot/internal/paths"
	"hostboot/internal/pins"
	"hostboot/internal/platform"
)

// environment is everything a command needs before touching the pipeline.
type environment struct {
	dirs   paths.Dirs
	cfg    config.Config
	target platform.Target
	pins   pins.Set
}

// loadEnvironment resolves the root, loads config.yaml with env overrides and
// picks the target. Validation warnings are written to warn.
func loadEnvironment(warn io.Writer) (environment, error) {
	dirs, err := paths.Resolve(rootDir)
	if err != nil {
		return environment{}, err
	}

	cfg, err := config.Load(dirs.ConfigFile)
	if err != nil {
		return environment{}, err
	}
	cfg.ApplyEnv()

	var errs []error
	for _, r := range cfg.Validate() {
		if r.Level == "error" {
			errs = append(errs, errors.New(r.Message))
			continue
		}
		fmt.Fprintf(warn, "warning: %s\n", r.Message)
	}
	if len(errs) > 0 {
		return environment{}, fmt.Errorf("invalid configuration %s: %w", dirs.ConfigFile, errors.Join(errs...))
	}

	target, err := resolveTarget(cfg.Target)
	if err != nil {
		return environment{}, err
	}

	return environment{
		dirs:   paths.ApplyConfig(dirs, cfg),
		cfg:    cfg,
		target: target,
		pins:   pins.Default().WithMirrors(cfg.Mirrors.ManagerURL, cfg.Mirrors.RuntimeURL),
	}, nil
}

func resolveTarget(override string) (platform.Target, error) {
	if strings.TrimSpace(override) != "" {
		return platform.Parse(override)
	}
	return platform.Detect()
}

package rust

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"
	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/manifest"
)

const (
	ecosystemName   = entities.EcosystemRust
	defaultManifest = "Cargo.toml"
	lockFile        = "Cargo.lock"

	// cargo-outdated prints these placeholders instead of a version
	noVersion      = "---"
	removedVersion = "Removed"
)

// RustEcosystemRepository implements repositories.EcosystemRepository for Cargo crates.
type RustEcosystemRepository struct {
	runner repositories.CommandRunner
}

// NewRustEcosystemRepository creates the Cargo ecosystem backed by the given command runner.
func NewRustEcosystemRepository(runner repositories.CommandRunner) repositories.EcosystemRepository {
	return &RustEcosystemRepository{runner: runner}
}

func (it *RustEcosystemRepository) Name() entities.Ecosystem { return ecosystemName }

// Detect returns true if the workspace has a Cargo.toml.
func (it *RustEcosystemRepository) Detect(ws repositories.Workspace) bool {
	return manifest.Exists(ws.Path(ws.Manifest(ecosystemName, defaultManifest)))
}

// Discover runs cargo-outdated on the root crate dependencies.
func (it *RustEcosystemRepository) Discover(
	ctx context.Context,
	ws repositories.Workspace,
) []entities.Update {
	manifestPath := ws.Manifest(ecosystemName, defaultManifest)
	if !it.Detect(ws) {
		logger.Warnf("[rust] %s not found, skipping Rust dependency check", manifestPath)
		return nil
	}

	runCtx, cancel := ws.WithCommandTimeout(ctx)
	defer cancel()

	output, err := it.runner.Run(
		runCtx, filepath.Dir(ws.Path(manifestPath)),
		"cargo", "outdated", "--root-deps-only", "--format", "json",
	)
	if err != nil {
		logger.Warnf("[rust] cargo outdated failed: %v", err)
		return nil
	}

	updates, parseErr := parseOutdated(output, manifestPath)
	if parseErr != nil {
		logger.Warnf("[rust] Failed to parse cargo outdated output: %v", parseErr)
		return nil
	}

	logger.Infof("[rust] Found %d outdated Rust dependencies", len(updates))
	return updates
}

// Apply rewrites the crate's version requirement and refreshes Cargo.lock for that crate.
func (it *RustEcosystemRepository) Apply(
	ctx context.Context,
	ws repositories.Workspace,
	update entities.Update,
) error {
	path := ws.Path(update.ManifestPath)
	if _, err := manifest.Substitute(path, update.LatestVersion, dependencyPatterns(update)...); err != nil {
		return fmt.Errorf("[rust] failed to update %s: %w", update.Name, err)
	}

	if err := validateTOML(path); err != nil {
		return fmt.Errorf("[rust] %s is no longer valid TOML: %w", update.ManifestPath, err)
	}

	dir := filepath.Dir(path)
	if !hasLockFile(ws.RootDir, dir) {
		logger.Debugf("[rust] No %s found, skipping lock regeneration", lockFile)
		return nil
	}

	runCtx, cancel := ws.WithCommandTimeout(ctx)
	defer cancel()

	if _, err := it.runner.Run(runCtx, dir, "cargo", "update", "-p", update.Name); err != nil {
		return fmt.Errorf("[rust] failed to regenerate %s: %w", lockFile, err)
	}
	return nil
}

// RunTests runs the crate test suite with every feature enabled.
func (it *RustEcosystemRepository) RunTests(ctx context.Context, ws repositories.Workspace) error {
	if !it.Detect(ws) {
		return nil
	}

	runCtx, cancel := ws.WithCommandTimeout(ctx)
	defer cancel()

	dir := filepath.Dir(ws.Path(ws.Manifest(ecosystemName, defaultManifest)))
	if _, err := it.runner.Run(runCtx, dir, "cargo", "test", "--all-features"); err != nil {
		return fmt.Errorf("[rust] tests failed: %w", err)
	}
	return nil
}

// --- cargo-outdated parsing ---

type outdatedReport struct {
	Dependencies []outdatedDependency `json:"dependencies"`
}

type outdatedDependency struct {
	Name      string `json:"name"`
	Project   string `json:"project"`
	Latest    string `json:"latest"`
	Available string `json:"available"`
}

// parseOutdated decodes one report per workspace member and keeps the first entry per crate.
func parseOutdated(output []byte, manifestPath string) ([]entities.Update, error) {
	decoder := json.NewDecoder(bytes.NewReader(output))
	seen := make(map[string]bool)
	var updates []entities.Update

	for {
		var report outdatedReport
		err := decoder.Decode(&report)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		for _, dep := range report.Dependencies {
			latest := dep.Latest
			if latest == "" {
				latest = dep.Available
			}
			if seen[dep.Name] || !isVersion(dep.Project) || !isVersion(latest) {
				continue
			}
			if update, ok := entities.NewUpdate(ecosystemName, dep.Name, dep.Project, latest, manifestPath); ok {
				seen[dep.Name] = true
				updates = append(updates, update)
			}
		}
	}

	return updates, nil
}

func isVersion(value string) bool {
	return value != "" && value != noVersion && value != removedVersion
}

// --- manifest patching ---

// dependencyPatterns matches `name = "1.2"`, `name = { version = "1.2", ... }` and the
// `version = "1.2"` line of a `[dependencies.name]` table, with an optional requirement
// operator in front of the version.
func dependencyPatterns(update entities.Update) []*regexp.Regexp {
	name := regexp.QuoteMeta(update.Name)
	version := `(?P<version>` + regexp.QuoteMeta(update.CurrentVersion) + `)"`
	operator := `(?:[~^=]|>=)?\s*`

	return []*regexp.Regexp{
		regexp.MustCompile(
			`(?m)^\s*` + name + `\s*=\s*(?:\{[^}\n]*?\bversion\s*=\s*)?"` + operator + version,
		),
		// the table body ends at the next line opening with "["
		regexp.MustCompile(
			`(?m)^\[(?:[\w.-]+\.)?(?:dev-|build-)?dependencies\.` + name + `\][ \t]*\r?\n` +
				`(?:[ \t]*[^\[\s][^\n]*\n|[ \t]*\r?\n)*?[ \t]*version\s*=\s*"` + operator + version,
		),
	}
}

func validateTOML(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var document map[string]any
	return toml.Unmarshal(content, &document)
}

func hasLockFile(rootDir, manifestDir string) bool {
	return manifest.Exists(filepath.Join(manifestDir, lockFile)) ||
		manifest.Exists(filepath.Join(rootDir, lockFile))
}

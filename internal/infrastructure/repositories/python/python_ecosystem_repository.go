package python

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/manifest"
)

const (
	ecosystemName   = entities.EcosystemPython
	defaultManifest = "python/pyproject.toml"
	poetryLockFile  = "poetry.lock"
	uvLockFile      = "uv.lock"
	testsDir        = "tests/"
)

// PythonEcosystemRepository implements repositories.EcosystemRepository for pip packages
// declared in a pyproject.toml.
type PythonEcosystemRepository struct {
	runner repositories.CommandRunner
}

// NewPythonEcosystemRepository creates the Python ecosystem backed by the given command runner.
func NewPythonEcosystemRepository(runner repositories.CommandRunner) repositories.EcosystemRepository {
	return &PythonEcosystemRepository{runner: runner}
}

func (it *PythonEcosystemRepository) Name() entities.Ecosystem { return ecosystemName }

// Detect returns true if the workspace has the configured pyproject.toml.
func (it *PythonEcosystemRepository) Detect(ws repositories.Workspace) bool {
	return manifest.Exists(ws.Path(ws.Manifest(ecosystemName, defaultManifest)))
}

// Discover asks pip which installed packages are outdated, from the manifest directory.
func (it *PythonEcosystemRepository) Discover(
	ctx context.Context,
	ws repositories.Workspace,
) []entities.Update {
	manifestPath := ws.Manifest(ecosystemName, defaultManifest)
	if !it.Detect(ws) {
		logger.Warnf("[python] %s not found, skipping Python dependency check", manifestPath)
		return nil
	}

	runCtx, cancel := ws.WithCommandTimeout(ctx)
	defer cancel()

	output, err := it.runner.Run(
		runCtx, filepath.Dir(ws.Path(manifestPath)),
		"pip", "list", "--outdated", "--format=json",
	)
	if err != nil {
		logger.Warnf("[python] pip list --outdated failed: %v", err)
		return nil
	}

	var packages []outdatedPackage
	if decodeErr := json.Unmarshal(output, &packages); decodeErr != nil {
		logger.Warnf("[python] Failed to parse pip output: %v", decodeErr)
		return nil
	}

	declared, err := declaredPackages(ws.Path(manifestPath))
	if err != nil {
		logger.Warnf("[python] Failed to read dependencies from %s: %v", manifestPath, err)
		return nil
	}

	updates := make([]entities.Update, 0, len(packages))
	for _, pkg := range packages {
		if !declared[normalizeName(pkg.Name)] {
			logger.Debugf("[python] Skipping %s, not declared in %s", pkg.Name, manifestPath)
			continue
		}
		if update, ok := entities.NewUpdate(
			ecosystemName, pkg.Name, pkg.Version, pkg.LatestVersion, manifestPath,
		); ok {
			updates = append(updates, update)
		}
	}

	logger.Infof("[python] Found %d outdated Python dependencies", len(updates))
	return updates
}

// Apply rewrites the version inside the package's requirement string and refreshes the
// Poetry or uv lock file when the project has one.
func (it *PythonEcosystemRepository) Apply(
	ctx context.Context,
	ws repositories.Workspace,
	update entities.Update,
) error {
	path := ws.Path(update.ManifestPath)
	if _, err := manifest.Substitute(path, update.LatestVersion, requirementPatterns(update)...); err != nil {
		return fmt.Errorf("[python] failed to update %s: %w", update.Name, err)
	}

	if err := validateTOML(path); err != nil {
		return fmt.Errorf("[python] %s is no longer valid TOML: %w", update.ManifestPath, err)
	}

	dir := filepath.Dir(path)
	name, args := lockCommand(dir)
	if name == "" {
		return nil
	}

	runCtx, cancel := ws.WithCommandTimeout(ctx)
	defer cancel()

	if _, err := it.runner.Run(runCtx, dir, name, args...); err != nil {
		return fmt.Errorf("[python] failed to regenerate lock file: %w", err)
	}
	return nil
}

// RunTests runs pytest from the manifest directory.
func (it *PythonEcosystemRepository) RunTests(ctx context.Context, ws repositories.Workspace) error {
	if !it.Detect(ws) {
		return nil
	}

	runCtx, cancel := ws.WithCommandTimeout(ctx)
	defer cancel()

	dir := filepath.Dir(ws.Path(ws.Manifest(ecosystemName, defaultManifest)))
	if _, err := it.runner.Run(runCtx, dir, "python", "-m", "pytest", testsDir); err != nil {
		return fmt.Errorf("[python] tests failed: %w", err)
	}
	return nil
}

type outdatedPackage struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	LatestVersion string `json:"latest_version"`
}

// requirementPatterns matches PEP 508 strings such as "requests[socks]>=2.31.0" and Poetry
// tables such as `requests = "^2.31.0"` or `requests = { version = "^2.31.0" }`. Package
// names compare case-insensitively with "-", "_" and "." treated as equal.
func requirementPatterns(update entities.Update) []*regexp.Regexp {
	name := normalizedNamePattern(update.Name)
	version := `(?P<version>` + regexp.QuoteMeta(update.CurrentVersion) + `)`

	return []*regexp.Regexp{
		regexp.MustCompile(
			`(?i)["']` + name + `(?:\[[^\]]*\])?\s*(?:===|==|~=|>=|<=|!=|>|<)\s*` + version + `\s*[,;"']`,
		),
		regexp.MustCompile(
			`(?im)^\s*["']?` + name + `["']?\s*=\s*(?:\{[^}\n]*?\bversion\s*=\s*)?["'][~^=<>!]*\s*` +
				version + `["']`,
		),
	}
}

func normalizedNamePattern(name string) string {
	parts := nameSeparators.Split(name, -1)
	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		quoted = append(quoted, regexp.QuoteMeta(part))
	}
	return strings.Join(quoted, `[-_.]+`)
}

// pyproject holds the dependency declarations of PEP 621, PEP 735 and Poetry.
type pyproject struct {
	Project struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	DependencyGroups map[string][]any `toml:"dependency-groups"`
	Tool             struct {
		Poetry struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
			Group           map[string]struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

var (
	requirementName = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)
	nameSeparators  = regexp.MustCompile(`[-_.]+`)
)

// declaredPackages returns the normalized names of every dependency the manifest declares.
func declaredPackages(path string) (map[string]bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var document pyproject
	if err = toml.Unmarshal(content, &document); err != nil {
		return nil, err
	}

	declared := make(map[string]bool)
	addRequirement := func(requirement string) {
		if match := requirementName.FindStringSubmatch(requirement); match != nil {
			declared[normalizeName(match[1])] = true
		}
	}

	for _, requirement := range document.Project.Dependencies {
		addRequirement(requirement)
	}
	for _, extra := range document.Project.OptionalDependencies {
		for _, requirement := range extra {
			addRequirement(requirement)
		}
	}
	for _, group := range document.DependencyGroups {
		for _, entry := range group {
			// {include-group = "..."} tables carry no package name
			if requirement, ok := entry.(string); ok {
				addRequirement(requirement)
			}
		}
	}

	poetry := document.Tool.Poetry
	tables := []map[string]any{poetry.Dependencies, poetry.DevDependencies}
	for _, group := range poetry.Group {
		tables = append(tables, group.Dependencies)
	}
	for _, table := range tables {
		for name := range table {
			if name != "python" {
				declared[normalizeName(name)] = true
			}
		}
	}
	return declared, nil
}

// normalizeName applies the PEP 503 name normalization.
func normalizeName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(name), "-")
}

func lockCommand(dir string) (string, []string) {
	switch {
	case manifest.Exists(filepath.Join(dir, poetryLockFile)):
		return "poetry", []string{"lock", "--no-update"}
	case manifest.Exists(filepath.Join(dir, uvLockFile)):
		return "uv", []string{"lock"}
	default:
		return "", nil
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

package golang

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/mod/modfile"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/manifest"
)

const (
	ecosystemName   = entities.EcosystemGolang
	defaultManifest = "go.mod"
	vendorDir       = "vendor"
)

// GolangEcosystemRepository implements repositories.EcosystemRepository for Go modules.
type GolangEcosystemRepository struct {
	runner   repositories.CommandRunner
	goBinary string
}

// NewGolangEcosystemRepository creates the Go modules ecosystem backed by the given command runner.
func NewGolangEcosystemRepository(runner repositories.CommandRunner) repositories.EcosystemRepository {
	return &GolangEcosystemRepository{runner: runner}
}

func (it *GolangEcosystemRepository) Name() entities.Ecosystem { return ecosystemName }

// Detect returns true if the workspace has a go.mod.
func (it *GolangEcosystemRepository) Detect(ws repositories.Workspace) bool {
	return manifest.Exists(ws.Path(ws.Manifest(ecosystemName, defaultManifest)))
}

// Discover lists the direct requirements that have a newer version available.
func (it *GolangEcosystemRepository) Discover(
	ctx context.Context,
	ws repositories.Workspace,
) []entities.Update {
	manifestPath := ws.Manifest(ecosystemName, defaultManifest)
	if !it.Detect(ws) {
		logger.Warnf("[golang] %s not found, skipping Go dependency check", manifestPath)
		return nil
	}

	runCtx, cancel := ws.WithCommandTimeout(ctx)
	defer cancel()

	output, err := it.runner.Run(
		runCtx, filepath.Dir(ws.Path(manifestPath)),
		it.binary(), "list", "-m", "-u", "-json", "all",
	)
	if err != nil {
		logger.Warnf("[golang] go list -m -u failed: %v", err)
		return nil
	}

	updates, parseErr := parseModules(output, manifestPath)
	if parseErr != nil {
		logger.Warnf("[golang] Failed to parse go list output: %v", parseErr)
		return nil
	}

	logger.Infof("[golang] Found %d outdated Go dependencies", len(updates))
	return updates
}

// Apply rewrites the module's require line, then tidies go.sum and refreshes vendor/ when present.
func (it *GolangEcosystemRepository) Apply(
	ctx context.Context,
	ws repositories.Workspace,
	update entities.Update,
) error {
	path := ws.Path(update.ManifestPath)
	if _, err := manifest.Substitute(path, update.LatestVersion, requirePattern(update)); err != nil {
		return fmt.Errorf("[golang] failed to update %s: %w", update.Name, err)
	}

	if err := validateModFile(path); err != nil {
		return fmt.Errorf("[golang] %s is no longer valid: %w", update.ManifestPath, err)
	}

	runCtx, cancel := ws.WithCommandTimeout(ctx)
	defer cancel()

	dir := filepath.Dir(path)
	if _, err := it.runner.Run(runCtx, dir, it.binary(), "mod", "tidy"); err != nil {
		return fmt.Errorf("[golang] go mod tidy failed: %w", err)
	}

	if info, statErr := os.Stat(filepath.Join(dir, vendorDir)); statErr == nil && info.IsDir() {
		if _, err := it.runner.Run(runCtx, dir, it.binary(), "mod", "vendor"); err != nil {
			return fmt.Errorf("[golang] go mod vendor failed: %w", err)
		}
	}
	return nil
}

// RunTests runs every package test of the module.
func (it *GolangEcosystemRepository) RunTests(ctx context.Context, ws repositories.Workspace) error {
	if !it.Detect(ws) {
		return nil
	}

	runCtx, cancel := ws.WithCommandTimeout(ctx)
	defer cancel()

	dir := filepath.Dir(ws.Path(ws.Manifest(ecosystemName, defaultManifest)))
	if _, err := it.runner.Run(runCtx, dir, it.binary(), "test", "./..."); err != nil {
		return fmt.Errorf("[golang] tests failed: %w", err)
	}
	return nil
}

func (it *GolangEcosystemRepository) binary() string {
	if it.goBinary == "" {
		it.goBinary = findGoBinary()
	}
	return it.goBinary
}

type listedModule struct {
	Path     string        `json:"Path"`
	Version  string        `json:"Version"`
	Main     bool          `json:"Main"`
	Indirect bool          `json:"Indirect"`
	Update   *listedModule `json:"Update"`
}

// parseModules decodes the concatenated JSON objects printed by `go list -m -json`.
func parseModules(output []byte, manifestPath string) ([]entities.Update, error) {
	decoder := json.NewDecoder(bytes.NewReader(output))
	var updates []entities.Update

	for {
		var module listedModule
		err := decoder.Decode(&module)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if module.Main || module.Indirect || module.Update == nil {
			continue
		}
		if update, ok := entities.NewUpdate(
			ecosystemName, module.Path, module.Version, module.Update.Version, manifestPath,
		); ok {
			updates = append(updates, update)
		}
	}

	return updates, nil
}

// requirePattern matches both `require path v1.2.3` and a line inside a require block.
func requirePattern(update entities.Update) *regexp.Regexp {
	return regexp.MustCompile(
		`(?m)^\s*(?:require\s+)?` + regexp.QuoteMeta(update.Name) + `\s+(?P<version>` +
			regexp.QuoteMeta(update.CurrentVersion) + `)(?:\s|$)`,
	)
}

func validateModFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = modfile.Parse(path, content, nil)
	return err
}

// findGoBinary locates the Go toolchain, looking in PATH first and then in common install
// locations. It falls back to "go" and lets the runner report the failure.
func findGoBinary() string {
	if path, err := exec.LookPath("go"); err == nil {
		return path
	}

	candidates := []string{"/usr/local/go/bin/go", "/usr/bin/go", "/snap/bin/go"}
	if home, _ := os.UserHomeDir(); home != "" {
		gvmDir := filepath.Join(home, ".gvm", "gos")
		if entries, err := os.ReadDir(gvmDir); err == nil {
			for i := len(entries) - 1; i >= 0; i-- {
				if entries[i].IsDir() && strings.HasPrefix(entries[i].Name(), "go") {
					candidates = append(candidates, filepath.Join(gvmDir, entries[i].Name(), "bin", "go"))
				}
			}
		}
		candidates = append(candidates, filepath.Join(home, ".goenv", "shims", "go"))
	}

	for _, candidate := range candidates {
		if manifest.Exists(candidate) {
			return candidate
		}
	}
	return "go"
}

package terraform

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	logger "github.com/sirupsen/logrus"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/mod/semver"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/lookup"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/manifest"
)

const (
	ecosystemName = entities.EcosystemTerraform
	fileExtension = ".tf"
	minMatchLen   = 6
)

var (
	skippedDirs   = map[string]bool{".terraform": true, ".git": true}
	refPattern    = regexp.MustCompile(`[?&]ref=([^&\s"]+)`)
	modulePattern = regexp.MustCompile(`(?s)module\s+"([^"]+)"\s*\{[^}]*source\s*=\s*"([^"]+)"`)
	hostPattern   = regexp.MustCompile(`(?:github\.com|gitlab\.com)[/:]([^?]+)`)
)

// TerraformEcosystemRepository implements repositories.EcosystemRepository for git-sourced
// Terraform modules pinned with `?ref=`.
type TerraformEcosystemRepository struct{}

// NewTerraformEcosystemRepository creates the Terraform modules ecosystem.
func NewTerraformEcosystemRepository() repositories.EcosystemRepository {
	return &TerraformEcosystemRepository{}
}

func (it *TerraformEcosystemRepository) Name() entities.Ecosystem { return ecosystemName }

// Detect returns true if the workspace contains .tf files.
func (it *TerraformEcosystemRepository) Detect(ws repositories.Workspace) bool {
	return len(terraformFiles(ws)) > 0
}

// Discover resolves the latest tag of every pinned git module.
func (it *TerraformEcosystemRepository) Discover(
	ctx context.Context,
	ws repositories.Workspace,
) []entities.Update {
	files := terraformFiles(ws)
	if len(files) == 0 {
		logger.Warnf("[terraform] No .tf files found, skipping Terraform dependency check")
		return nil
	}
	if ws.Lookup == nil {
		logger.Warnf("[terraform] No hosting lookup available, skipping Terraform dependency check")
		return nil
	}

	cache := lookup.NewCachedLookup(ws.Lookup)
	seen := make(map[string]bool)
	var updates []entities.Update

	for _, file := range files {
		content, err := os.ReadFile(ws.Path(file))
		if err != nil {
			logger.Warnf("[terraform] Failed to read %s: %v", file, err)
			continue
		}

		for _, dep := range scanTerraformFile(string(content), file) {
			key := file + "\x00" + dep.source + "\x00" + dep.version
			if seen[key] {
				continue
			}
			seen[key] = true
			logger.Debugf("[terraform] %s:%d module %q pinned to %s", file, dep.line, dep.name, dep.version)

			identifier := sourceIdentifier(dep.source)
			if identifier == "" {
				logger.Debugf("[terraform] Unsupported module host for %s", dep.source)
				continue
			}
			latest := cache.Latest(ctx, identifier)
			if latest == "" || !isNewerVersion(dep.version, latest) {
				continue
			}
			if update, ok := entities.NewUpdate(ecosystemName, dep.source, dep.version, latest, file); ok {
				updates = append(updates, update)
			}
		}
	}

	logger.Infof("[terraform] Found %d outdated Terraform modules", len(updates))
	return updates
}

// Apply rewrites the `ref=` value of every source pointing at the module.
func (it *TerraformEcosystemRepository) Apply(
	_ context.Context,
	ws repositories.Workspace,
	update entities.Update,
) error {
	if _, err := manifest.Substitute(ws.Path(update.ManifestPath), update.LatestVersion, sourcePattern(update)); err != nil {
		return fmt.Errorf("[terraform] failed to update %s: %w", update.Name, err)
	}
	return nil
}

// RunTests is a no-op: module upgrades are validated by the consuming pipeline.
func (it *TerraformEcosystemRepository) RunTests(context.Context, repositories.Workspace) error {
	return nil
}

type moduleDependency struct {
	name    string
	source  string
	version string
	line    int
}

// terraformFiles returns the repository-relative .tf paths, skipping provider caches.
func terraformFiles(ws repositories.Workspace) []string {
	var files []string
	_ = filepath.WalkDir(ws.RootDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if entry.IsDir() {
			if skippedDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(entry.Name()) != fileExtension {
			return nil
		}
		if rel, relErr := filepath.Rel(ws.RootDir, path); relErr == nil {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	return files
}

// --- scanning ---

func scanTerraformFile(content, filePath string) []moduleDependency {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL([]byte(content), filePath)
	if diags.HasErrors() || file.Body == nil {
		return scanWithRegex(content)
	}

	bodyContent, _, partialDiags := file.Body.PartialContent(&hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "module", LabelNames: []string{"name"}},
		},
	})
	if partialDiags.HasErrors() {
		return scanWithRegex(content)
	}

	var deps []moduleDependency
	for _, block := range bodyContent.Blocks {
		attrs, _ := block.Body.JustAttributes()
		sourceAttr, hasSource := attrs["source"]
		if !hasSource {
			continue
		}

		sourceVal, sourceDiags := sourceAttr.Expr.Value(&hcl.EvalContext{})
		if sourceDiags.HasErrors() || sourceVal.Type() != cty.String {
			continue
		}

		if dep, ok := newModuleDependency(block.Labels[0], sourceVal.AsString()); ok {
			dep.line = block.DefRange.Start.Line
			deps = append(deps, dep)
		}
	}
	return deps
}

func scanWithRegex(content string) []moduleDependency {
	var deps []moduleDependency
	for _, match := range modulePattern.FindAllStringSubmatchIndex(content, -1) {
		if len(match) < minMatchLen {
			continue
		}
		if dep, ok := newModuleDependency(content[match[2]:match[3]], content[match[4]:match[5]]); ok {
			dep.line = strings.Count(content[:match[0]], "\n") + 1
			deps = append(deps, dep)
		}
	}
	return deps
}

func newModuleDependency(name, source string) (moduleDependency, bool) {
	if !isGitModule(source) {
		return moduleDependency{}, false
	}
	matches := refPattern.FindStringSubmatch(source)
	if len(matches) < 2 { //nolint:mnd // full match + ref
		return moduleDependency{}, false
	}
	return moduleDependency{name: name, source: sourceBase(source), version: matches[1]}, true
}

// --- source helpers ---

func isGitModule(source string) bool {
	return strings.HasPrefix(source, "git::") ||
		strings.HasPrefix(source, "git@") ||
		strings.Contains(source, "github.com") ||
		strings.Contains(source, "gitlab.com")
}

// sourceBase drops the query string of a module source.
func sourceBase(source string) string {
	if idx := strings.Index(source, "?"); idx != -1 {
		return source[:idx]
	}
	return source
}

// sourceIdentifier reduces "git::https://github.com/org/repo.git//modules/x" to "org/repo".
func sourceIdentifier(source string) string {
	matches := hostPattern.FindStringSubmatch(source)
	if len(matches) < 2 { //nolint:mnd // full match + path
		return ""
	}
	path := matches[1]
	if idx := strings.Index(path, "//"); idx != -1 {
		path = path[:idx]
	}
	identifier := lookup.RepositoryIdentifier(path)
	return strings.TrimSuffix(identifier, ".git")
}

func sourcePattern(update entities.Update) *regexp.Regexp {
	return regexp.MustCompile(
		`source\s*=\s*"` + regexp.QuoteMeta(update.Name) + `\?(?:[^"]*&)?ref=(?P<version>` +
			regexp.QuoteMeta(update.CurrentVersion) + `)["&]`,
	)
}

// --- version helpers ---

func isNewerVersion(current, latest string) bool {
	cur := normalizeVersion(current)
	next := normalizeVersion(latest)
	if semver.IsValid(cur) && semver.IsValid(next) {
		return semver.Compare(next, cur) > 0
	}
	return latest != current
}

func normalizeVersion(version string) string {
	version = strings.TrimSpace(version)
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

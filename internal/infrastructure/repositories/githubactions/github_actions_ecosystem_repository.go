package githubactions

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/lookup"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/manifest"
)

const (
	ecosystemName       = entities.EcosystemGitHubActions
	defaultWorkflowsDir = ".github/workflows"
	usesKey             = "uses"
	localActionPrefix   = "./"
	dockerActionPrefix  = "docker://"
)

// GitHubActionsEcosystemRepository implements repositories.EcosystemRepository for the
// `uses: owner/repo@ref` references of workflow files.
type GitHubActionsEcosystemRepository struct{}

// NewGitHubActionsEcosystemRepository creates the workflow actions ecosystem.
func NewGitHubActionsEcosystemRepository() repositories.EcosystemRepository {
	return &GitHubActionsEcosystemRepository{}
}

func (it *GitHubActionsEcosystemRepository) Name() entities.Ecosystem { return ecosystemName }

// Detect returns true if the workspace has at least one workflow file.
func (it *GitHubActionsEcosystemRepository) Detect(ws repositories.Workspace) bool {
	return len(workflowFiles(ws)) > 0
}

// Discover resolves every action reference against its latest release, or latest tag.
func (it *GitHubActionsEcosystemRepository) Discover(
	ctx context.Context,
	ws repositories.Workspace,
) []entities.Update {
	files := workflowFiles(ws)
	if len(files) == 0 {
		logger.Warnf("[github-actions] No workflow files found, skipping actions check")
		return nil
	}
	if ws.Lookup == nil {
		logger.Warnf("[github-actions] No hosting lookup available, skipping actions check")
		return nil
	}

	cache := lookup.NewCachedLookup(ws.Lookup)
	seen := make(map[string]bool)
	var updates []entities.Update

	for _, file := range files {
		refs, err := scanWorkflow(ws.Path(file))
		if err != nil {
			logger.Warnf("[github-actions] Failed to parse %s: %v", file, err)
			continue
		}

		for _, ref := range refs {
			key := file + "\x00" + ref.name + "\x00" + ref.version
			if seen[key] {
				continue
			}
			seen[key] = true

			identifier := lookup.RepositoryIdentifier(ref.name)
			if identifier == "" {
				continue
			}
			latest := cache.Latest(ctx, identifier)
			if latest == "" {
				logger.Debugf("[github-actions] No release or tag found for %s", identifier)
				continue
			}
			if update, ok := entities.NewUpdate(ecosystemName, ref.name, ref.version, latest, file); ok {
				updates = append(updates, update)
			}
		}
	}

	logger.Infof("[github-actions] Found %d outdated actions", len(updates))
	return updates
}

// Apply rewrites every `name@current` reference of the workflow file.
func (it *GitHubActionsEcosystemRepository) Apply(
	_ context.Context,
	ws repositories.Workspace,
	update entities.Update,
) error {
	if _, err := manifest.Substitute(ws.Path(update.ManifestPath), update.LatestVersion, usesPattern(update)); err != nil {
		return fmt.Errorf("[github-actions] failed to update %s: %w", update.Name, err)
	}
	return nil
}

// RunTests is a no-op: workflow files have no local test suite.
func (it *GitHubActionsEcosystemRepository) RunTests(context.Context, repositories.Workspace) error {
	return nil
}

type actionReference struct {
	name    string
	version string
}

// workflowFiles returns the repository-relative workflow paths in lexical order.
func workflowFiles(ws repositories.Workspace) []string {
	dir := ws.Manifest(ecosystemName, defaultWorkflowsDir)
	entries, err := os.ReadDir(ws.Path(dir))
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.Type().IsRegular() && (ext == ".yml" || ext == ".yaml") {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files
}

// scanWorkflow collects every remote `uses` value of the document, in document order.
func scanWorkflow(file string) ([]actionReference, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var document yaml.Node
	if err = yaml.Unmarshal(content, &document); err != nil {
		return nil, err
	}

	var refs []actionReference
	walk(&document, func(value string) {
		if ref, ok := parseUses(value); ok {
			refs = append(refs, ref)
		}
	})
	return refs, nil
}

func walk(node *yaml.Node, visit func(string)) {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Value == usesKey && value.Kind == yaml.ScalarNode {
				visit(value.Value)
				continue
			}
			walk(value, visit)
		}
		return
	}
	for _, child := range node.Content {
		walk(child, visit)
	}
}

// parseUses splits "owner/repo/path@ref" at the last "@". Local and docker actions are ignored.
func parseUses(value string) (actionReference, bool) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, localActionPrefix) || strings.HasPrefix(value, dockerActionPrefix) {
		return actionReference{}, false
	}

	at := strings.LastIndex(value, "@")
	if at <= 0 || at == len(value)-1 {
		return actionReference{}, false
	}
	return actionReference{name: value[:at], version: value[at+1:]}, true
}

func usesPattern(update entities.Update) *regexp.Regexp {
	return regexp.MustCompile(
		`(?m)(?:^|[\s"'])` + regexp.QuoteMeta(update.Name) + `@(?P<version>` +
			regexp.QuoteMeta(update.CurrentVersion) + `)(?:[\s"'#]|$)`,
	)
}

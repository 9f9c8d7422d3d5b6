package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/rios0rios0/depflow/internal/domain/entities"
)

const (
	providerGitHub = "github"
	providerGitLab = "gitlab"
)

// parseRemoteURL extracts provider, organization and repository name from a Git remote URL.
func parseRemoteURL(rawURL string) (*entities.RemoteInfo, error) {
	cleaned := strings.TrimSuffix(strings.TrimSpace(rawURL), ".git")

	if strings.Contains(cleaned, "github.com") {
		o, r, e := parseStandardGitURL(cleaned, "github.com")
		if e != nil {
			return nil, e
		}
		return &entities.RemoteInfo{ProviderType: providerGitHub, Org: o, RepoName: r}, nil
	}

	if strings.Contains(cleaned, "gitlab.com") {
		o, r, e := parseStandardGitURL(cleaned, "gitlab.com")
		if e != nil {
			return nil, e
		}
		return &entities.RemoteInfo{ProviderType: providerGitLab, Org: o, RepoName: r}, nil
	}

	return nil, fmt.Errorf("unsupported git remote URL: %s", rawURL)
}

// parseStandardGitURL returns the namespace and repository of an SSH or HTTPS URL. GitLab
// namespaces may contain subgroups, so everything before the last segment is the namespace.
func parseStandardGitURL(url, hostname string) (string, string, error) {
	var pathPart string

	if strings.HasPrefix(url, "git@") {
		_, after, ok := strings.Cut(url, ":")
		if !ok {
			return "", "", fmt.Errorf("invalid SSH URL: %s", url)
		}
		pathPart = after
	} else {
		_, after, ok := strings.Cut(url, hostname)
		if !ok {
			return "", "", fmt.Errorf("hostname %s not found in URL: %s", hostname, url)
		}
		pathPart = strings.TrimPrefix(strings.TrimPrefix(after, ":"), "/")
	}

	pathPart = strings.Trim(pathPart, "/")
	idx := strings.LastIndex(pathPart, "/")
	if idx <= 0 || idx == len(pathPart)-1 {
		return "", "", fmt.Errorf("cannot extract org/repo from URL: %s", url)
	}

	return pathPart[:idx], pathPart[idx+1:], nil
}

func resolveTokenFromEnv(providerType string) string {
	switch providerType {
	case providerGitHub:
		if t := os.Getenv("GITHUB_TOKEN"); t != "" {
			return t
		}
		return os.Getenv("GH_TOKEN")
	case providerGitLab:
		if t := os.Getenv("GITLAB_TOKEN"); t != "" {
			return t
		}
		return os.Getenv("GL_TOKEN")
	default:
		return ""
	}
}

func tokenEnvHint(providerType string) string {
	switch providerType {
	case providerGitHub:
		return "GITHUB_TOKEN or GH_TOKEN"
	case providerGitLab:
		return "GITLAB_TOKEN or GL_TOKEN"
	default:
		return "<unknown provider>"
	}
}

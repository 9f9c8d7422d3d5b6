//go:build unit

package gitlab_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/gitlab"
)

// newServer routes on "METHOD /decoded/path" since project IDs arrive URL-encoded.
func newServer(t *testing.T, routes map[string]http.HandlerFunc) repositories.HostingRepository {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			writeJSON(w, http.StatusNotFound, `{"message": "404 Not Found"}`)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	repo, err := gitlab.NewGitLabHostingRepositoryWithBaseURL("test-token", server.URL)
	require.NoError(t, err)
	return repo
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGitLabHostingRepositoryGetRepository(t *testing.T) {
	t.Parallel()

	t.Run("should map the project metadata of a nested namespace", func(t *testing.T) {
		t.Parallel()

		// given
		repo := newServer(t, map[string]http.HandlerFunc{
			"GET /api/v4/projects/acme/platform/widget": func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "test-token", r.Header.Get("Private-Token"))
				writeJSON(w, http.StatusOK, `{
					"id": 99, "path": "widget", "default_branch": "main",
					"http_url_to_repo": "https://gitlab.com/acme/platform/widget.git"
				}`)
			},
		})

		// when
		result, err := repo.GetRepository(context.Background(), "acme/platform/widget")

		// then
		require.NoError(t, err)
		assert.Equal(t, "99", result.ID)
		assert.Equal(t, "widget", result.Name)
		assert.Equal(t, "acme/platform", result.Organization)
		assert.Equal(t, "refs/heads/main", result.DefaultBranch)
		assert.Equal(t, "gitlab", result.ProviderName)
	})

	t.Run("should return the error of an unknown project", func(t *testing.T) {
		t.Parallel()

		// given
		repo := newServer(t, map[string]http.HandlerFunc{})

		// when
		_, err := repo.GetRepository(context.Background(), "acme/missing")

		// then
		require.Error(t, err)
	})
}

func TestGitLabHostingRepositoryReferences(t *testing.T) {
	t.Parallel()

	t.Run("should list release tags in API order", func(t *testing.T) {
		t.Parallel()

		// given
		repo := newServer(t, map[string]http.HandlerFunc{
			"GET /api/v4/projects/acme/tool/releases": func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, `[{"tag_name": "v2.1.0"}, {"tag_name": "v2.0.0"}]`)
			},
		})

		// when
		releases, err := repo.GetReleases(context.Background(), "acme/tool")

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{"v2.1.0", "v2.0.0"}, releases)
	})

	t.Run("should follow tag pagination and sort newest first", func(t *testing.T) {
		t.Parallel()

		// given
		repo := newServer(t, map[string]http.HandlerFunc{
			"GET /api/v4/projects/acme/tool/repository/tags": func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("page") == "2" {
					writeJSON(w, http.StatusOK, `[{"name": "1.10.0"}]`)
					return
				}
				w.Header().Set("X-Next-Page", "2")
				writeJSON(w, http.StatusOK, `[{"name": "1.2.0"}, {"name": "1.9.0"}]`)
			},
		})

		// when
		tags, err := repo.GetTags(context.Background(), "acme/tool")

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{"1.10.0", "1.9.0", "1.2.0"}, tags)
	})
}

func TestGitLabHostingRepositoryCreatePullRequest(t *testing.T) {
	t.Parallel()

	t.Run("should open a merge request removing the source branch", func(t *testing.T) {
		t.Parallel()

		// given
		var received map[string]any
		repo := newServer(t, map[string]http.HandlerFunc{
			"POST /api/v4/projects/acme/platform/widget/merge_requests": func(w http.ResponseWriter, r *http.Request) {
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
				writeJSON(w, http.StatusCreated, `{
					"iid": 12, "title": "chore(deps): updated 2 dependencies (rust, python)",
					"web_url": "https://gitlab.com/acme/platform/widget/-/merge_requests/12", "state": "opened"
				}`)
			},
		})

		// when
		pr, err := repo.CreatePullRequest(context.Background(),
			entities.Repository{Organization: "acme/platform", Name: "widget"},
			entities.PullRequestInput{
				SourceBranch: "refs/heads/deps/auto-update-20260102-030405",
				TargetBranch: "refs/heads/main",
				Title:        "chore(deps): updated 2 dependencies (rust, python)",
			},
		)

		// then
		require.NoError(t, err)
		assert.Equal(t, 12, pr.ID)
		assert.Equal(t, "https://gitlab.com/acme/platform/widget/-/merge_requests/12", pr.URL)
		assert.Equal(t, "deps/auto-update-20260102-030405", received["source_branch"])
		assert.Equal(t, "main", received["target_branch"])
		assert.Equal(t, true, received["remove_source_branch"])
	})
}

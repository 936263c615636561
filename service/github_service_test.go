package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FlorianRuen/github-portfolio-proxy/cache"
	"github.com/FlorianRuen/github-portfolio-proxy/config"
	"github.com/FlorianRuen/github-portfolio-proxy/model"
	"github.com/FlorianRuen/github-portfolio-proxy/upstream"
	"github.com/google/go-github/v66/github"
	githubMock "github.com/migueleliasweb/go-github-mock/src/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockedService build the service on top of the real upstream client and a mocked github
func newMockedService(t *testing.T, mockedHTTPClient *http.Client) githubService {
	t.Helper()

	cfg := config.GetDefault()
	cfg.Github.Owner = "owner"

	store, err := cache.NewStore(cfg.Cache)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	fetcher := upstream.NewClient(cfg.Github, store, mockedHTTPClient.Transport)

	return githubService{upstream: fetcher, config: *cfg, now: time.Now}
}

// repositoryFromPath extract the repository name from /repos/{owner}/{repo}/...
func repositoryFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return ""
	}

	return parts[2]
}

func writeMock(t *testing.T, w http.ResponseWriter, status int, body []byte) {
	w.WriteHeader(status)
	_, err := w.Write(body)

	if err != nil {
		t.Error("unable to configure mock http client")
	}
}

func TestListRepositories(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		response      []byte
		expectedNames []string
		expectError   bool
		expectedCode  int
	}{
		{
			name:          "Repositories forwarded with every github field",
			status:        http.StatusOK,
			response:      []byte(`[{"name":"portfolio","stargazers_count":3,"field_added_later":{"x":1}},{"name":"dotfiles"}]`),
			expectedNames: []string{"portfolio", "dotfiles"},
		},
		{
			name:          "No repository",
			status:        http.StatusOK,
			response:      []byte(`[]`),
			expectedNames: []string{},
		},
		{
			name:         "Unknown owner",
			status:       http.StatusNotFound,
			response:     []byte(`{"message":"Not Found"}`),
			expectError:  true,
			expectedCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockedHTTPClient := githubMock.NewMockedHTTPClient(
				githubMock.WithRequestMatchHandler(
					githubMock.GetUsersReposByUsername,
					http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
						assert.Equal(t, "created", r.URL.Query().Get("sort"))
						writeMock(t, w, tt.status, tt.response)
					}),
				),
			)

			svc := newMockedService(t, mockedHTTPClient)
			body, err := svc.ListRepositories(context.Background())

			if tt.expectError {
				upstreamErr, ok := model.AsUpstreamError(err)
				require.True(t, ok)
				assert.Equal(t, tt.expectedCode, upstreamErr.StatusCode())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, string(tt.response), string(body))

			names, err := svc.listRepositoryNames(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expectedNames, names)
		})
	}
}

// TestFetchLanguages will test function FetchLanguages
func TestFetchLanguages(t *testing.T) {
	tests := []struct {
		name             string
		status           int
		response         []byte
		expectedResult   model.LanguageMap
		expectError      bool
		expectedCode     int
		expectedErrorMsg string
	}{
		{
			name:     "Languages keep github order",
			status:   http.StatusOK,
			response: []byte(`{"TypeScript": 300, "CSS": 20, "HTML": 5}`),
			expectedResult: model.LanguageMap{
				{Language: "TypeScript", Bytes: 300},
				{Language: "CSS", Bytes: 20},
				{Language: "HTML", Bytes: 5},
			},
		},
		{
			name:             "Empty repository",
			status:           http.StatusNotFound,
			response:         []byte(`{"message":"Not Found"}`),
			expectError:      true,
			expectedCode:     http.StatusNotFound,
			expectedErrorMsg: `languages not found for repo "repo"`,
		},
		{
			name:             "Forbidden by github",
			status:           http.StatusForbidden,
			response:         []byte(`{"message":"Forbidden"}`),
			expectError:      true,
			expectedCode:     http.StatusForbidden,
			expectedErrorMsg: `{"message":"Forbidden"} for repo "repo"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockedHTTPClient := githubMock.NewMockedHTTPClient(
				githubMock.WithRequestMatchHandler(
					githubMock.GetReposLanguagesByOwnerByRepo,
					http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
						writeMock(t, w, tt.status, tt.response)
					}),
				),
			)

			svc := newMockedService(t, mockedHTTPClient)
			result, err := svc.FetchLanguages(context.Background(), "repo")

			if tt.expectError {
				upstreamErr, ok := model.AsUpstreamError(err)
				require.True(t, ok)
				assert.Equal(t, tt.expectedCode, upstreamErr.StatusCode())
				assert.EqualError(t, err, tt.expectedErrorMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedResult, result)
		})
	}
}

func TestFetchReadme(t *testing.T) {
	t.Run("Readme rendered with the repository context", func(t *testing.T) {
		var receivedContext string

		mockedHTTPClient := githubMock.NewMockedHTTPClient(
			githubMock.WithRequestMatchHandler(
				githubMock.GetReposReadmeByOwnerByRepo,
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, "application/vnd.github.v3.raw", r.Header.Get("Accept"))
					writeMock(t, w, http.StatusOK, []byte("# Portfolio"))
				}),
			),
			githubMock.WithRequestMatchHandler(
				githubMock.PostMarkdown,
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					var opts struct {
						Text    string `json:"text"`
						Mode    string `json:"mode"`
						Context string `json:"context"`
					}

					assert.NoError(t, json.NewDecoder(r.Body).Decode(&opts))
					assert.Equal(t, "# Portfolio", opts.Text)
					assert.Equal(t, "gfm", opts.Mode)
					receivedContext = opts.Context

					writeMock(t, w, http.StatusOK, []byte("<h1>Portfolio</h1>"))
				}),
			),
		)

		svc := newMockedService(t, mockedHTTPClient)
		html, err := svc.FetchReadme(context.Background(), "portfolio")

		require.NoError(t, err)
		assert.Equal(t, "<h1>Portfolio</h1>", html)
		assert.Equal(t, "owner/portfolio", receivedContext)
	})

	t.Run("Readme missing", func(t *testing.T) {
		mockedHTTPClient := githubMock.NewMockedHTTPClient(
			githubMock.WithRequestMatchHandler(
				githubMock.GetReposReadmeByOwnerByRepo,
				http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					writeMock(t, w, http.StatusNotFound, []byte(`{"message":"Not Found"}`))
				}),
			),
		)

		svc := newMockedService(t, mockedHTTPClient)
		_, err := svc.FetchReadme(context.Background(), "portfolio")

		upstreamErr, ok := model.AsUpstreamError(err)
		require.True(t, ok)
		assert.True(t, upstreamErr.IsNotFound())
		assert.EqualError(t, err, `readme not found for repo "portfolio"`)
	})
}

// TestFetchReadmeRenderedOnce check a README viewed twice is fetched and rendered once
func TestFetchReadmeRenderedOnce(t *testing.T) {
	var readmeCalls, renderCalls atomic.Int32

	mockedHTTPClient := githubMock.NewMockedHTTPClient(
		githubMock.WithRequestMatchHandler(
			githubMock.GetReposReadmeByOwnerByRepo,
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				readmeCalls.Add(1)
				writeMock(t, w, http.StatusOK, []byte("# Portfolio"))
			}),
		),
		githubMock.WithRequestMatchHandler(
			githubMock.PostMarkdown,
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				renderCalls.Add(1)
				writeMock(t, w, http.StatusOK, []byte("<h1>Portfolio</h1>"))
			}),
		),
	)

	svc := newMockedService(t, mockedHTTPClient)

	for i := 0; i < 2; i++ {
		html, err := svc.FetchReadme(context.Background(), "portfolio")

		require.NoError(t, err)
		assert.Equal(t, "<h1>Portfolio</h1>", html)
	}

	assert.Equal(t, int32(1), readmeCalls.Load())
	assert.Equal(t, int32(1), renderCalls.Load())
}

// TestFetchLastCommit will test function FetchLastCommit
func TestFetchLastCommit(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		status         int
		response       []byte
		expectedResult model.LastCommit
		expectNotFound bool
	}{
		{
			name:   "Last commit found",
			status: http.StatusOK,
			response: githubMock.MustMarshal([]github.RepositoryCommit{
				{
					HTMLURL: github.String("https://github.com/owner/repo/commit/abc"),
					Commit: &github.Commit{
						Message: github.String("fix: handle empty repositories"),
						Committer: &github.CommitAuthor{
							Date: &github.Timestamp{Time: now.Add(-3 * 24 * time.Hour)},
						},
					},
				},
			}),
			expectedResult: model.LastCommit{
				Link:    "https://github.com/owner/repo/commit/abc",
				Date:    "3 days ago",
				Message: "fix: handle empty repositories",
			},
		},
		{
			name:   "Author date used without committer",
			status: http.StatusOK,
			response: githubMock.MustMarshal([]github.RepositoryCommit{
				{
					HTMLURL: github.String("https://github.com/owner/repo/commit/def"),
					Commit: &github.Commit{
						Message: github.String("initial commit"),
						Author: &github.CommitAuthor{
							Date: &github.Timestamp{Time: now.Add(-2 * time.Hour)},
						},
					},
				},
			}),
			expectedResult: model.LastCommit{
				Link:    "https://github.com/owner/repo/commit/def",
				Date:    "2 hours ago",
				Message: "initial commit",
			},
		},
		{
			name:           "Empty repository answers conflict",
			status:         http.StatusConflict,
			response:       []byte(`{"message":"Git Repository is empty."}`),
			expectNotFound: true,
		},
		{
			name:           "No commit listed",
			status:         http.StatusOK,
			response:       []byte(`[]`),
			expectNotFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockedHTTPClient := githubMock.NewMockedHTTPClient(
				githubMock.WithRequestMatchHandler(
					githubMock.GetReposCommitsByOwnerByRepo,
					http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
						assert.Equal(t, "1", r.URL.Query().Get("per_page"))
						writeMock(t, w, tt.status, tt.response)
					}),
				),
			)

			svc := newMockedService(t, mockedHTTPClient)
			svc.now = func() time.Time { return now }

			result, err := svc.FetchLastCommit(context.Background(), "repo")

			if tt.expectNotFound {
				upstreamErr, ok := model.AsUpstreamError(err)
				require.True(t, ok)
				assert.Equal(t, http.StatusNotFound, upstreamErr.StatusCode())
				assert.EqualError(t, err, `no commit found for repo "repo"`)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedResult, result)
		})
	}
}

// TestAggregateLanguagesFromGithub run the whole aggregation against a mocked github
// and check a second aggregation is served from the response cache
func TestAggregateLanguagesFromGithub(t *testing.T) {
	var listCalls, languagesCalls atomic.Int32

	languagesByRepo := map[string]string{
		"portfolio": `{"TypeScript": 300, "CSS": 20}`,
		"dotfiles":  `{"Shell": 40}`,
		"api":       `{"Go": 500, "TypeScript": 12}`,
	}

	mockedHTTPClient := githubMock.NewMockedHTTPClient(
		githubMock.WithRequestMatchHandler(
			githubMock.GetUsersReposByUsername,
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				listCalls.Add(1)
				writeMock(t, w, http.StatusOK, githubMock.MustMarshal([]github.Repository{
					{Name: github.String("portfolio")},
					{Name: github.String("dotfiles")},
					{Name: github.String("api")},
				}))
			}),
		),
		githubMock.WithRequestMatchHandler(
			githubMock.GetReposLanguagesByOwnerByRepo,
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				languagesCalls.Add(1)

				body, found := languagesByRepo[repositoryFromPath(r.URL.Path)]
				if !found {
					writeMock(t, w, http.StatusNotFound, []byte(`{"message":"Not Found"}`))
					return
				}

				writeMock(t, w, http.StatusOK, []byte(body))
			}),
		),
	)

	svc := newMockedService(t, mockedHTTPClient)

	expected := []model.LanguageRecord{
		{Language: "TypeScript", Value: 312},
		{Language: "CSS", Value: 20},
		{Language: "Shell", Value: 40},
		{Language: "Go", Value: 500},
	}

	for i := 0; i < 2; i++ {
		aggregate, err := svc.AggregateLanguages(context.Background())

		require.NoError(t, err)
		assert.Equal(t, expected, aggregate.Records)
		assert.Empty(t, aggregate.Skipped)
	}

	assert.Equal(t, int32(1), listCalls.Load())
	assert.Equal(t, int32(3), languagesCalls.Load())
}

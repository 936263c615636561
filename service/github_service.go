package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/FlorianRuen/github-portfolio-proxy/config"
	"github.com/FlorianRuen/github-portfolio-proxy/model"
	"github.com/FlorianRuen/github-portfolio-proxy/upstream"
	"github.com/dustin/go-humanize"
	"github.com/google/go-github/v66/github"
	log "github.com/sirupsen/logrus"
)

type GithubService interface {
	ListRepositories(ctx context.Context) (json.RawMessage, error)
	FetchLanguages(ctx context.Context, repo string) (model.LanguageMap, error)
	FetchReadme(ctx context.Context, repo string) (string, error)
	FetchLastCommit(ctx context.Context, repo string) (model.LastCommit, error)
	AggregateLanguages(ctx context.Context) (model.LanguageAggregate, error)
}

type githubService struct {
	upstream upstream.Fetcher
	config   config.Config
	now      func() time.Time
}

// all calls target the single owner from the configuration
func NewGithubService(config config.Config, fetcher upstream.Fetcher) GithubService {
	return githubService{
		upstream: fetcher,
		config:   config,
		now:      time.Now,
	}
}

// ListRepositories fetch the owner repositories, most recently created first
// the github answer is returned untouched
func (s githubService) ListRepositories(ctx context.Context) (json.RawMessage, error) {
	log.WithField("owner", s.config.Github.Owner).Info("fetch repositories from github")

	status, body, err := s.upstream.Fetch(ctx, model.RepositoriesQuery(s.config.Github.Owner))
	if err != nil || status != http.StatusOK {
		return nil, s.HandleRequestErrors(status, body, err, "")
	}

	if !json.Valid(body) {
		return nil, errors.New("github returned an invalid repositories list")
	}

	return body, nil
}

// listRepositoryNames return the owner repositories names in listing order
func (s githubService) listRepositoryNames(ctx context.Context) ([]string, error) {
	body, err := s.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}

	var repos []*github.Repository
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, errors.WrapIf(err, "unable to decode repositories")
	}

	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		names = append(names, repo.GetName())
	}

	return names, nil
}

// FetchLanguages get the languages byte counts for a specific repository
// github answers 404 for repositories without any content
func (s githubService) FetchLanguages(ctx context.Context, repo string) (model.LanguageMap, error) {
	log.WithField("repository", repo).Debug("fetch languages for repository")

	status, body, err := s.upstream.Fetch(ctx, model.LanguagesQuery(s.config.Github.Owner, repo))
	if err == nil && status == http.StatusNotFound {
		return nil, model.NewNotFoundError("languages not found", repo)
	}

	if err != nil || status != http.StatusOK {
		return nil, s.HandleRequestErrors(status, body, err, repo)
	}

	var languages model.LanguageMap
	if err := json.Unmarshal(body, &languages); err != nil {
		return nil, errors.WrapIf(err, "unable to decode languages of "+repo)
	}

	return languages, nil
}

// FetchReadme return the README of a repository rendered to HTML
func (s githubService) FetchReadme(ctx context.Context, repo string) (string, error) {
	log.WithField("repository", repo).Debug("fetch readme for repository")

	status, body, err := s.upstream.Fetch(ctx, model.ReadmeQuery(s.config.Github.Owner, repo))
	if err == nil && status == http.StatusNotFound {
		return "", model.NewNotFoundError("readme not found", repo)
	}

	if err != nil || status != http.StatusOK {
		return "", s.HandleRequestErrors(status, body, err, repo)
	}

	status, html, err := s.upstream.RenderMarkdown(ctx, string(body), s.config.Github.Owner+"/"+repo)
	if err != nil || status != http.StatusOK {
		return "", s.HandleRequestErrors(status, html, err, repo)
	}

	return string(html), nil
}

// FetchLastCommit return the most recent commit of the default branch
// github answers 409 when the repository is empty, reported as not found like a missing repository
func (s githubService) FetchLastCommit(ctx context.Context, repo string) (model.LastCommit, error) {
	log.WithField("repository", repo).Debug("fetch last commit for repository")

	status, body, err := s.upstream.Fetch(ctx, model.LastCommitQuery(s.config.Github.Owner, repo))
	if err == nil && (status == http.StatusNotFound || status == http.StatusConflict) {
		return model.LastCommit{}, model.NewNotFoundError("no commit found", repo)
	}

	if err != nil || status != http.StatusOK {
		return model.LastCommit{}, s.HandleRequestErrors(status, body, err, repo)
	}

	var commits []*github.RepositoryCommit
	if err := json.Unmarshal(body, &commits); err != nil {
		return model.LastCommit{}, errors.WrapIf(err, "unable to decode commits of "+repo)
	}

	if len(commits) == 0 || commits[0] == nil {
		return model.LastCommit{}, model.NewNotFoundError("no commit found", repo)
	}

	commit := commits[0]
	date := commit.GetCommit().GetCommitter().GetDate().Time
	if date.IsZero() {
		date = commit.GetCommit().GetAuthor().GetDate().Time
	}

	return model.LastCommit{
		Link:    commit.GetHTMLURL(),
		Date:    humanize.RelTime(date, s.now(), "ago", "from now"),
		Message: commit.GetCommit().GetMessage(),
	}, nil
}

// HandleRequestErrors map a failed github call to the error returned to the client
// a failure to reach github becomes a 500, a non 200 answer keeps its status and body
func (s githubService) HandleRequestErrors(status int, body []byte, err error, repo string) error {
	if err != nil {
		if errors.Is(err, upstream.ErrRateLimitReached) {
			return model.NewRateLimitError(err, repo)
		}

		log.WithError(err).WithField("repository", repo).Error("error catched when fetching data from github")
		return model.NewTransportError(err, repo)
	}

	log.WithFields(log.Fields{
		"status":     status,
		"repository": repo,
	}).Warning("github answered with an unexpected status")

	return model.NewUpstreamError(status, body, repo)
}

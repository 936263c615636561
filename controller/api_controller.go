package controller

import (
	"net/http"
	"strings"

	"github.com/FlorianRuen/github-portfolio-proxy/config"
	"github.com/FlorianRuen/github-portfolio-proxy/service"
	"github.com/gin-gonic/gin"
)

// HeaderSkippedRepositories list the repositories left out of the languages aggregation
const HeaderSkippedRepositories = "X-Skipped-Repositories"

type APIController interface {
	Welcome(c *gin.Context)
	GetRepositories(c *gin.Context)
	GetReadme(c *gin.Context)
	GetLastCommit(c *gin.Context)
	GetRepositoryLanguages(c *gin.Context)
	GetLanguages(c *gin.Context)
}

type apiController struct {
	githubService service.GithubService
	config        config.Config
}

func NewAPIController(config config.Config, service service.GithubService) APIController {
	return apiController{
		githubService: service,
		config:        config,
	}
}

func (s apiController) Welcome(c *gin.Context) {
	c.Data(http.StatusOK, contentTypeHTML, []byte(welcomePage(s.config.Github.Owner)))
}

func (s apiController) GetRepositories(c *gin.Context) {
	repos, err := s.githubService.ListRepositories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	// forwarded as github answered
	c.Data(http.StatusOK, contentTypeJSON, repos)
}

func (s apiController) GetReadme(c *gin.Context) {
	html, err := s.githubService.FetchReadme(c.Request.Context(), c.Param("repo"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, contentTypeHTML, []byte(html))
}

func (s apiController) GetLastCommit(c *gin.Context) {
	commit, err := s.githubService.FetchLastCommit(c.Request.Context(), c.Param("repo"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, commit)
}

func (s apiController) GetRepositoryLanguages(c *gin.Context) {
	languages, err := s.githubService.FetchLanguages(c.Request.Context(), c.Param("repo"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, languages)
}

// GetLanguages answer the languages of every repository summed together
func (s apiController) GetLanguages(c *gin.Context) {
	aggregate, err := s.githubService.AggregateLanguages(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	if len(aggregate.Skipped) > 0 {
		c.Header(HeaderSkippedRepositories, strings.Join(aggregate.Skipped, ","))
	}

	c.JSON(http.StatusOK, aggregate.Records)
}

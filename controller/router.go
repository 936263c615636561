package controller

import (
	"net/http"
	"time"

	"github.com/FlorianRuen/github-portfolio-proxy/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter define all routes served by the API, unknown paths answer 404
func NewRouter(apiController APIController) *gin.Engine {
	router := gin.New()

	router.Use(
		logger.GinLogger(),
		logger.Recovery(),
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{http.MethodGet, http.MethodOptions},
			AllowHeaders:  []string{"Content-Type", "Content-Length", "Accept-Encoding", "Host", "Accept", "Origin", "Cache-Control", "X-Requested-With"},
			ExposeHeaders: []string{HeaderSkippedRepositories},
			MaxAge:        12 * time.Hour,
		}),
	)

	api := router.Group("")
	{
		api.GET("/", apiController.Welcome)
		api.GET("/repos", apiController.GetRepositories)
		api.GET("/readme/:repo", apiController.GetReadme)
		api.GET("/last-commit/:repo", apiController.GetLastCommit)
		api.GET("/languages/:repo", apiController.GetRepositoryLanguages)
		api.GET("/languages", apiController.GetLanguages)
	}

	router.NoRoute(func(c *gin.Context) {
		c.Data(http.StatusNotFound, contentTypeText, []byte(http.StatusText(http.StatusNotFound)))
	})

	return router
}

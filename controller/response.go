package controller

import (
	"html"
	"net/http"

	"github.com/FlorianRuen/github-portfolio-proxy/model"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
)

// respondError write the failure as plain text with the status carried by the error
// anything that is not an upstream error is hidden behind a generic 500
func respondError(c *gin.Context, err error) {
	if upstreamErr, ok := model.AsUpstreamError(err); ok {
		c.Data(upstreamErr.StatusCode(), contentTypeText, []byte(upstreamErr.Error()))
		return
	}

	log.WithError(err).WithField("path", c.Request.URL.Path).Error("unexpected error while handling request")
	c.Data(http.StatusInternalServerError, contentTypeText, []byte(http.StatusText(http.StatusInternalServerError)))
}

func welcomePage(owner string) string {
	owner = html.EscapeString(owner)

	return `<!DOCTYPE html>
<html>
<head><title>` + owner + ` on GitHub</title></head>
<body>
<h1>GitHub portfolio of ` + owner + `</h1>
<ul>
<li><a href="/repos">/repos</a> repositories, most recent first</li>
<li>/readme/:repo README rendered to HTML</li>
<li>/last-commit/:repo last commit of a repository</li>
<li>/languages/:repo languages of a repository</li>
<li><a href="/languages">/languages</a> languages of all repositories</li>
</ul>
</body>
</html>
`
}

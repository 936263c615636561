package model

import (
	"net/url"
	"strings"
)

// UpstreamQuery describe a single github call
// a new value is built for every call, it is never shared between requests
type UpstreamQuery struct {
	Path  string
	Query url.Values
}

func RepositoriesQuery(owner string) UpstreamQuery {
	return UpstreamQuery{
		Path:  "users/" + url.PathEscape(owner) + "/repos",
		Query: url.Values{"sort": []string{"created"}},
	}
}

func LanguagesQuery(owner string, repo string) UpstreamQuery {
	return UpstreamQuery{Path: repositoryPath(owner, repo) + "/languages"}
}

func ReadmeQuery(owner string, repo string) UpstreamQuery {
	return UpstreamQuery{Path: repositoryPath(owner, repo) + "/readme"}
}

func LastCommitQuery(owner string, repo string) UpstreamQuery {
	return UpstreamQuery{
		Path:  repositoryPath(owner, repo) + "/commits",
		Query: url.Values{"per_page": []string{"1"}},
	}
}

// URL return the relative url, resolved by the github client against its base url
func (q UpstreamQuery) URL() string {
	var u strings.Builder
	u.WriteString(strings.TrimPrefix(q.Path, "/"))

	if len(q.Query) > 0 {
		u.WriteString("?" + q.Query.Encode())
	}

	return u.String()
}

func repositoryPath(owner string, repo string) string {
	return "repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}

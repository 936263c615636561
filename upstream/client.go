package upstream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/FlorianRuen/github-portfolio-proxy/cache"
	"github.com/FlorianRuen/github-portfolio-proxy/config"
	"github.com/FlorianRuen/github-portfolio-proxy/model"
	"github.com/cespare/xxhash/v2"
	"github.com/google/go-github/v66/github"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Fetcher is what the github service needs from the upstream client
type Fetcher interface {
	Fetch(ctx context.Context, query model.UpstreamQuery) (int, []byte, error)
	RenderMarkdown(ctx context.Context, text string, repoContext string) (int, []byte, error)
}

// Client issue authenticated requests to github
// every request goes through: response cache > local rate limiter > basic auth > base transport
type Client struct {
	githubClient *github.Client
	rateLimiter  *rate.Limiter
	store        *cache.Store
	mediaType    string
}

// NewClient build the github client and its transport chain
// base can be nil, it is replaced in tests by a mocked transport
func NewClient(cfg config.GithubConfig, store *cache.Store, base http.RoundTripper) *Client {
	rateLimiter := rate.NewLimiter(perHour(cfg.RateLimitPerHour), max(cfg.RateLimitPerHour, 1))

	transport := base
	if transport == nil {
		transport = http.DefaultTransport
	}

	if cfg.ClientID != "" {
		log.Debug("will setup github client with client id and secret")
		transport = &github.BasicAuthTransport{
			Username:  cfg.ClientID,
			Password:  cfg.ClientSecret,
			Transport: transport,
		}
	}

	transport = &rateLimitTransport{rateLimiter: rateLimiter, next: transport}

	if store != nil {
		transport = cache.NewTransport(store, transport)
	}

	githubClient := github.NewClient(&http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	})

	if cfg.UserAgent != "" {
		githubClient.UserAgent = cfg.UserAgent
	}

	return &Client{
		githubClient: githubClient,
		rateLimiter:  rateLimiter,
		store:        store,
		mediaType:    cfg.MediaType,
	}
}

// Fetch execute a GET on github and return the status and the raw body
// a non 2xx answer is not an error, only a failure to reach github is
func (c *Client) Fetch(ctx context.Context, query model.UpstreamQuery) (int, []byte, error) {
	req, err := c.githubClient.NewRequest(http.MethodGet, query.URL(), nil)
	if err != nil {
		return 0, nil, errors.WrapIf(err, "unable to build github request")
	}

	if c.mediaType != "" {
		req.Header.Set("Accept", c.mediaType)
	}

	log.WithField("url", req.URL.String()).Debug("fetch from github")

	var body bytes.Buffer
	resp, err := c.githubClient.Do(bypassRateLimitCheck(ctx), req, &body)

	return toResult(resp, body.Bytes(), err)
}

// RenderMarkdown render markdown to HTML using github markdown API
// repoContext is "owner/repo", used to resolve relative links and references
// the rendering is a POST, so it is cached here by repository and markdown content
func (c *Client) RenderMarkdown(ctx context.Context, text string, repoContext string) (int, []byte, error) {
	key := markdownCacheKey(text, repoContext)

	if c.store != nil {
		if entry, found := c.store.Get(key); found {
			log.WithField("repository", repoContext).Debug("rendered markdown served from cache")
			return entry.StatusCode, entry.Body, nil
		}
	}

	html, resp, err := c.githubClient.Markdown.Render(bypassRateLimitCheck(ctx), text, &github.MarkdownOptions{
		Mode:    "gfm",
		Context: repoContext,
	})

	status, body, err := toResult(resp, []byte(html), err)
	if err == nil && status == http.StatusOK && c.store != nil {
		c.store.Set(key, &cache.Entry{StatusCode: status, Body: body})
	}

	return status, body, err
}

func markdownCacheKey(text string, repoContext string) string {
	return "markdown:" + repoContext + ":" + strconv.FormatUint(xxhash.Sum64String(text), 16)
}

// bypassRateLimitCheck disable the go-github check made before each request
// the local rate limiter already guards requests sent to github, and cached answers must stay available
// once github reported the limit as exhausted
func bypassRateLimitCheck(ctx context.Context) context.Context {
	return context.WithValue(ctx, github.BypassRateLimitCheck, true)
}

// SyncRateLimit align the local rate limiter with the limits github currently applies to us
// this help us to have a right rate limiter even if external requests are made
func (c *Client) SyncRateLimit(ctx context.Context) error {
	rateLimits, _, err := c.githubClient.RateLimit.Get(ctx)
	if err != nil {
		return errors.WrapIf(err, "unable to load current github rate limits")
	}

	core := rateLimits.GetCore()
	if core == nil || core.Limit <= 0 {
		return errors.New("github returned no core rate limit")
	}

	log.WithFields(log.Fields{
		"totalAvailable":    core.Limit,
		"remainingRequests": core.Remaining,
	}).Debug("will sync local rate limiter with rate limits infos from github")

	c.rateLimiter.SetLimit(perHour(core.Limit))
	c.rateLimiter.SetBurst(core.Limit)

	if consumed := core.Limit - core.Remaining; consumed > 0 {
		c.rateLimiter.AllowN(time.Now(), consumed)
	}

	return nil
}

// toResult turn a go-github outcome into (status, body, transport error)
func toResult(resp *github.Response, body []byte, err error) (int, []byte, error) {
	if err == nil {
		return resp.StatusCode, body, nil
	}

	if resp == nil || resp.Response == nil || resp.StatusCode < http.StatusMultipleChoices {
		return 0, nil, err
	}

	// github answered, the body has been re-populated by go-github after its checks
	var errorBody []byte
	if resp.Body != nil {
		errorBody, _ = io.ReadAll(resp.Body)
	}

	if len(errorBody) == 0 {
		errorBody = []byte(err.Error())
	}

	return resp.StatusCode, errorBody, nil
}

func perHour(requests int) rate.Limit {
	if requests <= 0 {
		return rate.Inf
	}

	return rate.Every(time.Hour / time.Duration(requests))
}

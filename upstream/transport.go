package upstream

import (
	"net/http"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrRateLimitReached is returned when the local rate limiter has no token left
const ErrRateLimitReached = errors.Sentinel("RATE_LIMIT_REACHED")

// rateLimitTransport consume one token per request actually sent to github
// it sits below the cache so cached responses are free
type rateLimitTransport struct {
	rateLimiter *rate.Limiter
	next        http.RoundTripper
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.rateLimiter.Allow() {
		log.WithField("url", req.URL.String()).Warning("the Github rate limit has been reached. wait until the limit reset")
		return nil, ErrRateLimitReached
	}

	return t.next.RoundTrip(req)
}

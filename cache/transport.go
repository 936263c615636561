package cache

import (
	"bytes"
	"io"
	"net/http"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
)

// HeaderFromCache is set on replayed responses
// go-github skip its rate limit bookkeeping when it is present
const HeaderFromCache = "X-From-Cache"

// Transport serve GET requests from the store, keyed by the full request url
// only successful responses are stored, everything else goes through untouched
type Transport struct {
	store *Store
	next  http.RoundTripper
}

func NewTransport(store *Store, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}

	return &Transport{store: store, next: next}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.next.RoundTrip(req)
	}

	key := req.URL.String()

	if entry, found := t.store.Get(key); found {
		log.WithField("url", key).Debug("upstream response served from cache")
		return entry.toResponse(req), nil
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err != nil {
		return nil, errors.WrapIf(err, "unable to read upstream response body")
	}

	stored := t.store.Set(key, &Entry{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	})

	log.WithFields(log.Fields{
		"url":    key,
		"size":   len(body),
		"stored": stored,
	}).Debug("upstream response fetched")

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (e *Entry) toResponse(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	header.Set(HeaderFromCache, "1")

	return &http.Response{
		Status:        http.StatusText(e.StatusCode),
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

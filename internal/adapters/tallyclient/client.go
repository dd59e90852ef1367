// Package tallyclient talks to the remote barangay tally service.
//
// Every operation is one round trip. Nothing is retried and no local state is
// touched on failure; the caller decides what to do with the error.
package tallyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Remote endpoints.
const (
	PathCandidates        = "/candidates"
	PathVote              = "/vote"
	PathMine              = "/mine"
	PathChain             = "/chain_masked"
	PathPending           = "/pending"
	PathResults           = "/results"
	PathResultsByPrecinct = "/results_by_barangay"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 32 << 20
)

// Client is the Tally Source Client.
type Client struct {
	baseURL   string
	http      *http.Client
	log       logger.Logger
	userAgent string
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("tallyclient: invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: defaultTimeout},
		log:       logger.Discard(),
		userAgent: "tally-client",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchRoster loads the candidate roster. Unknown role names are dropped and
// logged.
func (c *Client) FetchRoster(ctx context.Context) (model.Roster, error) {
	var roster model.Roster
	if err := c.do(ctx, http.MethodGet, PathCandidates, nil, "", &roster); err != nil {
		return model.Roster{}, err
	}
	if ignored := roster.IgnoredRoles(); len(ignored) > 0 {
		c.log.Warn(ctx, "roster has unknown roles", logger.Strings("roles", ignored))
	}
	return roster, nil
}

// FetchChain loads the finalized blocks with their structure intact.
func (c *Client) FetchChain(ctx context.Context) ([]model.Block, error) {
	var chain []model.Block
	if err := c.do(ctx, http.MethodGet, PathChain, nil, "chain", &chain); err != nil {
		return nil, err
	}
	if chain == nil {
		chain = []model.Block{}
	}
	return chain, nil
}

// FetchFinalized loads the finalized votes, each labelled with its block's
// precinct.
func (c *Client) FetchFinalized(ctx context.Context) ([]model.Vote, error) {
	chain, err := c.FetchChain(ctx)
	if err != nil {
		return nil, err
	}
	return model.FinalizedVotes(chain), nil
}

// FetchPending loads the votes waiting to be mined, keyed by precinct in
// document order.
func (c *Client) FetchPending(ctx context.Context) (model.PendingSet, error) {
	var pending model.PendingSet
	if err := c.do(ctx, http.MethodGet, PathPending, nil, "pending", &pending); err != nil {
		return model.PendingSet{}, err
	}
	return pending, nil
}

// FetchResults loads the service's own tally, candidate -> count. The service
// counts pending votes as well as finalized ones.
func (c *Client) FetchResults(ctx context.Context) (map[string]int, error) {
	results := map[string]int{}
	if err := c.do(ctx, http.MethodGet, PathResults, nil, "results", &results); err != nil {
		return nil, err
	}
	if results == nil {
		results = map[string]int{}
	}
	return results, nil
}

// FetchResultsByPrecinct loads the service's per-precinct tally.
func (c *Client) FetchResultsByPrecinct(ctx context.Context) (map[string]map[string]int, error) {
	results := map[string]map[string]int{}
	if err := c.do(ctx, http.MethodGet, PathResultsByPrecinct, nil, "results_by_barangay", &results); err != nil {
		return nil, err
	}
	if results == nil {
		results = map[string]map[string]int{}
	}
	return results, nil
}

// SubmitVote posts a ballot and returns the service's message.
func (c *Client) SubmitVote(ctx context.Context, v model.Vote) (string, error) {
	var msg string
	if err := c.do(ctx, http.MethodPost, PathVote, v, "message", &msg); err != nil {
		return "", err
	}
	return msg, nil
}

// Mine asks the service to finalize pending votes, for one precinct or all of
// them when precinct is empty.
func (c *Client) Mine(ctx context.Context, precinct string) (string, error) {
	var body any
	if precinct != "" {
		body = map[string]string{"barangay": precinct}
	}
	var msg string
	if err := c.do(ctx, http.MethodPost, PathMine, body, "message", &msg); err != nil {
		return "", err
	}
	return msg, nil
}

// do performs one round trip and decodes the value under key (or the whole
// body when key is empty) into out.
func (c *Client) do(ctx context.Context, method, path string, body any, key string, out any) error {
	start := time.Now()
	status, raw, err := c.roundTrip(ctx, method, path, body)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if status > 0 {
		metrics.RecordRemoteRequest(path, strconv.Itoa(status), elapsed)
	}
	if err == nil {
		err = decode(path, status, raw, key, out)
	}
	if err != nil {
		metrics.RecordRemoteError(path, Kind(err))
		c.log.Warn(ctx, "tally service call failed",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status", status),
			logger.Float64("elapsed_ms", elapsed),
			logger.Error(err))
		return err
	}
	c.log.Debug(ctx, "tally service call",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", status),
		logger.Float64("elapsed_ms", elapsed))
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("tallyclient: encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("tallyclient: build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Endpoint: path, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Endpoint: path, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	return resp.StatusCode, raw, nil
}

// decode applies the error policy: unparseable bodies first, then non-success
// statuses, then a missing envelope key.
func decode(path string, status int, raw []byte, key string, out any) error {
	var envelope map[string]json.RawMessage
	if !json.Valid(raw) {
		return &MalformedResponseError{Endpoint: path, Status: status}
	}
	objErr := json.Unmarshal(raw, &envelope)
	message := messageOf(envelope)

	if status < 200 || status > 299 {
		if message == "" {
			message = fmt.Sprintf("Error %d", status)
		}
		return &TransportError{Endpoint: path, Status: status, Message: message}
	}

	payload := json.RawMessage(raw)
	if key != "" {
		if objErr != nil {
			return &MalformedResponseError{Endpoint: path, Status: status, Err: objErr}
		}
		v, ok := envelope[key]
		if !ok {
			if message == "" {
				message = fmt.Sprintf("response is missing %q", key)
			}
			return &ApplicationError{Endpoint: path, Message: message}
		}
		payload = v
	} else if message != "" && len(envelope) == 1 {
		return &ApplicationError{Endpoint: path, Message: message}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return &MalformedResponseError{Endpoint: path, Status: status, Err: err}
	}
	return nil
}

func messageOf(envelope map[string]json.RawMessage) string {
	raw, ok := envelope["message"]
	if !ok {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ""
	}
	return msg
}

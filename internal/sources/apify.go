package sources

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/utils"
)

const (
	apifyURL        = "https://api.apify.com"
	userAgent       = "spigell/job-matcher"
	contentType     = "application/json"
	contentEncoding = "gzip, br"
	runSyncPath     = "/v2/acts/%s/run-sync-get-dataset-items"
	// Actor runs are synchronous and may take a while to scrape.
	defaultTimeout = 5 * time.Minute
	maxErrorBody   = 512
)

// ApifyClient runs Apify actors synchronously and returns their dataset items.
type ApifyClient struct {
	token      string
	logger     *zap.Logger
	retry      utils.RetryPolicy
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func NewApifyClient(logger *zap.Logger, token string, retry utils.RetryPolicy) *ApifyClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApifyClient{
		token:  token,
		logger: logger,
		retry:  retry,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		UserAgent: userAgent,
		APIURL:    apifyURL,
	}
}

// RunActor starts actorID with input and waits for its dataset items.
func (c *ApifyClient) RunActor(ctx context.Context, actorID string, input any) ([]jobs.Raw, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal actor input: %w", err)
	}

	endpoint := c.APIURL + fmt.Sprintf(runSyncPath, url.PathEscape(strings.ReplaceAll(actorID, "/", "~")))

	var items []jobs.Raw
	err = utils.Retry(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return utils.Permanent(err)
		}
		req = c.setHeaders(req)
		req.Header.Set("Content-Type", contentType)

		resp, err := c.request(req)
		if err != nil {
			return err
		}

		items, err = c.parseItems(resp)
		return err
	}, func(attempt int, err error) {
		c.logger.Warn("actor run failed, retrying",
			zap.String("actor", actorID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("run actor %s: %w", actorID, err)
	}

	c.logger.Debug("got items from actor", zap.String("actor", actorID), zap.Int("items", len(items)))
	return items, nil
}

func (c *ApifyClient) parseItems(resp *http.Response) ([]jobs.Raw, error) {
	defer resp.Body.Close()

	body, err := decodedBody(resp)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := fmt.Errorf("bad status: %s: %s", resp.Status, utils.TruncateForLog(string(data), maxErrorBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, statusErr
		}
		return nil, utils.Permanent(statusErr)
	}

	var items []jobs.Raw
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, utils.Permanent(fmt.Errorf("decode dataset items: %w", err))
	}
	return items, nil
}

func decodedBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return reader, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "", "identity":
		return resp.Body, nil
	default:
		return nil, utils.Permanent(errors.New("unsupported content encoding " + resp.Header.Get("Content-Encoding")))
	}
}

func (c *ApifyClient) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.Redacted()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *ApifyClient) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

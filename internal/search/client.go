package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"github.com/dshills/treeindex/pkg/types"
)

// Client defaults
const (
	DefaultRequestTimeout   = 30 * time.Second
	DefaultTaskTimeout      = 5 * time.Minute
	DefaultTaskPollInterval = 100 * time.Millisecond
)

// Task statuses reported by the engine
const (
	TaskEnqueued   = string(meilisearch.TaskStatusEnqueued)
	TaskProcessing = string(meilisearch.TaskStatusProcessing)
	TaskSucceeded  = string(meilisearch.TaskStatusSucceeded)
	TaskFailed     = string(meilisearch.TaskStatusFailed)
	TaskCanceled   = string(meilisearch.TaskStatusCanceled)
)

const codeIndexExists = "index_already_exists"

// ClientConfig configures a Meilisearch client
type ClientConfig struct {
	URL              string
	APIKey           string
	RequestTimeout   time.Duration
	TaskTimeout      time.Duration
	TaskPollInterval time.Duration
	Retry            RetryConfig
	HTTPClient       *http.Client // optional, overrides RequestTimeout
}

// Client adapts the Meilisearch SDK to Backend. Every mutating call waits
// for its task; transient failures are retried with backoff.
type Client struct {
	ms           meilisearch.ServiceManager
	retry        RetryConfig
	taskTimeout  time.Duration
	pollInterval time.Duration
}

var _ Backend = (*Client)(nil)

// NewClient validates cfg and returns a client. No request is made.
func NewClient(cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: expected http(s)://host[:port]", cfg.URL)
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.TaskPollInterval <= 0 {
		cfg.TaskPollInterval = DefaultTaskPollInterval
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	// Retries are handled here so that they share one backoff policy
	// with task polling
	ms := meilisearch.New(strings.TrimRight(u.String(), "/"),
		meilisearch.WithAPIKey(cfg.APIKey),
		meilisearch.WithCustomClient(httpClient),
		meilisearch.DisableRetries(),
	)

	return &Client{
		ms:           ms,
		retry:        cfg.Retry,
		taskTimeout:  cfg.TaskTimeout,
		pollInterval: cfg.TaskPollInterval,
	}, nil
}

// Health checks GET /health
func (c *Client) Health(ctx context.Context) error {
	h, err := call(ctx, c.retry, func() (*meilisearch.Health, error) {
		return c.ms.HealthWithContext(ctx)
	})
	if err != nil {
		return err
	}
	if h.Status != "available" {
		return fmt.Errorf("%w: status %q", ErrUnavailable, h.Status)
	}
	return nil
}

// EnsureIndex creates the index when it does not exist. An existing index is
// left untouched.
func (c *Client) EnsureIndex(ctx context.Context, index, primaryKey string) error {
	_, err := call(ctx, c.retry, func() (*meilisearch.IndexResult, error) {
		return c.ms.GetIndexWithContext(ctx, index)
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrIndexNotFound) {
		return fmt.Errorf("get index %s: %w", index, err)
	}

	err = c.submit(ctx, func() (*meilisearch.TaskInfo, error) {
		return c.ms.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{Uid: index, PrimaryKey: primaryKey})
	})

	// Another writer may have created it between our GET and POST
	var te *TaskError
	if errors.As(err, &te) && te.Code == codeIndexExists {
		return nil
	}
	var ae *APIError
	if errors.As(err, &ae) && ae.Code == codeIndexExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	return nil
}

func (c *Client) FilterableAttributes(ctx context.Context, index string) ([]string, error) {
	return c.getStrings(ctx, c.ms.Index(index).GetFilterableAttributesWithContext)
}

func (c *Client) SetFilterableAttributes(ctx context.Context, index string, attrs []string) error {
	return c.submit(ctx, func() (*meilisearch.TaskInfo, error) {
		return c.ms.Index(index).UpdateFilterableAttributesWithContext(ctx, &attrs)
	})
}

func (c *Client) SortableAttributes(ctx context.Context, index string) ([]string, error) {
	return c.getStrings(ctx, c.ms.Index(index).GetSortableAttributesWithContext)
}

func (c *Client) SetSortableAttributes(ctx context.Context, index string, attrs []string) error {
	return c.submit(ctx, func() (*meilisearch.TaskInfo, error) {
		return c.ms.Index(index).UpdateSortableAttributesWithContext(ctx, &attrs)
	})
}

func (c *Client) SetNonSeparatorTokens(ctx context.Context, index string, tokens []string) error {
	return c.submit(ctx, func() (*meilisearch.TaskInfo, error) {
		return c.ms.Index(index).UpdateNonSeparatorTokensWithContext(ctx, tokens)
	})
}

// UpsertDocuments adds or replaces documents by primary key
func (c *Client) UpsertDocuments(ctx context.Context, index string, docs []types.Record, primaryKey string) error {
	if len(docs) == 0 {
		return nil
	}
	var pk []string
	if primaryKey != "" {
		pk = append(pk, primaryKey)
	}
	return c.submit(ctx, func() (*meilisearch.TaskInfo, error) {
		return c.ms.Index(index).AddDocumentsWithContext(ctx, docs, pk...)
	})
}

// DeleteDocuments removes every document matching filter
func (c *Client) DeleteDocuments(ctx context.Context, index string, filter Filter) error {
	if len(filter) == 0 {
		return ErrEmptyFilter
	}
	expr := filter.String()
	return c.submit(ctx, func() (*meilisearch.TaskInfo, error) {
		return c.ms.Index(index).DeleteDocumentsByFilterWithContext(ctx, expr)
	})
}

func (c *Client) getStrings(ctx context.Context, get func(context.Context) (*[]string, error)) ([]string, error) {
	vals, err := call(ctx, c.retry, func() (*[]string, error) {
		return get(ctx)
	})
	if err != nil {
		return nil, err
	}
	if vals == nil {
		return []string{}, nil
	}
	return *vals, nil
}

// submit enqueues an asynchronous operation and waits for its task to finish
func (c *Client) submit(ctx context.Context, enqueue func() (*meilisearch.TaskInfo, error)) error {
	info, err := call(ctx, c.retry, enqueue)
	if err != nil {
		return err
	}
	return c.waitForTask(ctx, info)
}

// waitForTask polls the task until it reaches a final state or the task
// timeout expires
func (c *Client) waitForTask(ctx context.Context, info *meilisearch.TaskInfo) error {
	tctx, cancel := context.WithTimeout(ctx, c.taskTimeout)
	defer cancel()

	task, err := call(tctx, c.retry, func() (*meilisearch.Task, error) {
		t, err := c.ms.WaitForTaskWithContext(tctx, info.TaskUID, c.pollInterval)
		if err != nil && tctx.Err() != nil && ctx.Err() == nil {
			return nil, permanent(fmt.Errorf("%w: task %d", ErrTaskTimeout, info.TaskUID))
		}
		return t, err
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: task %d", ErrTaskTimeout, info.TaskUID)
		}
		if errors.Is(err, ErrTaskTimeout) {
			return err
		}
		return fmt.Errorf("poll task %d: %w", info.TaskUID, err)
	}

	switch task.Status {
	case meilisearch.TaskStatusSucceeded:
		return nil
	case meilisearch.TaskStatusFailed, meilisearch.TaskStatusCanceled:
		return &TaskError{
			TaskUID: info.TaskUID,
			Type:    string(task.Type),
			Status:  string(task.Status),
			Code:    task.Error.Code,
			Message: task.Error.Message,
		}
	}
	return fmt.Errorf("task %d ended in unexpected status %q", info.TaskUID, task.Status)
}

// call runs one SDK request with retry. Network errors, 5xx and 429
// responses are retried; other API errors are returned immediately as
// *APIError.
func call[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	return retryWithBackoff(ctx, cfg, func() (T, error) {
		v, err := fn()
		return v, classify(err)
	})
}

// classify converts SDK errors carrying an HTTP response into *APIError
func classify(err error) error {
	if err == nil {
		return nil
	}
	var p *permanentError
	if errors.As(err, &p) {
		return err
	}

	var me *meilisearch.Error
	if !errors.As(err, &me) || me.StatusCode == 0 {
		// No response: connection refused, reset, client timeout
		return err
	}

	apiErr := &APIError{
		Status:  me.StatusCode,
		Code:    me.MeilisearchApiError.Code,
		Type:    me.MeilisearchApiError.Type,
		Message: me.MeilisearchApiError.Message,
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(me.StatusCode)
	}
	if apiErr.retryable() {
		return apiErr
	}
	return permanent(apiErr)
}

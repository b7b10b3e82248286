// Package huntflow implements the authenticated client for the
// applicant-tracking API: candidate creation, vacancy status pushes,
// file uploads and paginated batch reads.
package huntflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"huntflow-sync/internal/common/config"
	"huntflow-sync/internal/common/errors"
	"huntflow-sync/internal/common/logger"
	"huntflow-sync/internal/common/metrics"

	"golang.org/x/sync/errgroup"
)

const (
	retryAttempts = 3
	retryWait     = 2 * time.Second

	defaultPageConcurrency = 5
)

// Client talks to the tracking-system HTTP API with bearer-token auth.
// The underlying HTTP session is created lazily once and reused.
type Client struct {
	baseURL       string
	token         string
	accountID     int64
	vacancyID     int64
	accountSource string
	initStatus    int64

	timeout         time.Duration
	pageConcurrency int
	retryWait       time.Duration

	sessionOnce sync.Once
	session     *http.Client

	reasonsMu sync.Mutex
	reasons   map[int64]string

	logger logger.Logger
}

// NewClient creates a Client from configuration. The HTTP session is not
// opened until the first request.
func NewClient(cfg config.HuntflowConfig, log logger.Logger) *Client {
	concurrency := cfg.PageConcurrency
	if concurrency <= 0 {
		concurrency = defaultPageConcurrency
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		token:           cfg.Token,
		accountID:       cfg.AccountID,
		vacancyID:       cfg.VacancyID,
		accountSource:   cfg.AccountSource,
		initStatus:      cfg.Statuses.Init,
		timeout:         config.GetDuration(cfg.Timeout),
		pageConcurrency: concurrency,
		retryWait:       retryWait,
		logger:          log,
	}
}

func (c *Client) httpSession() *http.Client {
	c.sessionOnce.Do(func() {
		c.session = &http.Client{Timeout: c.timeout}
	})
	return c.session
}

// Close releases the pooled HTTP connections.
func (c *Client) Close() {
	if c.session != nil {
		c.session.CloseIdleConnections()
	}
}

// CandidateRequest carries the fields for creating an external case.
type CandidateRequest struct {
	FirstName      string
	LastName       string
	Phone          string
	Specialization string
	Body           string
	FileIDs        []int64
}

// StatusUpdate carries a vacancy status transition. A zero StatusID means
// the configured initial status.
type StatusUpdate struct {
	StatusID int64
	Comment  string
	FileIDs  []int64
}

// ApplicantSummary is one entry of a paginated applicant listing.
type ApplicantSummary struct {
	ID int64 `json:"id"`
}

// LogEntry is one entry of an applicant's external change log. A zero
// RejectionReason means the entry carries none.
type LogEntry struct {
	ID              int64  `json:"id"`
	Status          int64  `json:"status"`
	RejectionReason int64  `json:"rejection_reason"`
	Comment         string `json:"comment"`
}

type fileRef struct {
	ID int64 `json:"id"`
}

func fileRefs(ids []int64) []fileRef {
	refs := make([]fileRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, fileRef{ID: id})
	}
	return refs
}

// CreateCandidate pushes a new applicant to the tracking system and returns
// its external id.
func (c *Client) CreateCandidate(ctx context.Context, req CandidateRequest) (int64, error) {
	payload := map[string]interface{}{
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"phone":      req.Phone,
		"position":   req.Specialization,
		"externals": []map[string]interface{}{
			{
				"data":           map[string]string{"body": req.Body},
				"auth_type":      "NATIVE",
				"files":          fileRefs(req.FileIDs),
				"account_source": c.accountSource,
			},
		},
	}

	var result struct {
		ID int64 `json:"id"`
	}
	path := fmt.Sprintf("/account/%d/applicants", c.accountID)
	if err := c.postJSON(ctx, "create_candidate", path, payload, &result); err != nil {
		return 0, errors.NewCandidateCreationError(err)
	}
	if result.ID == 0 {
		return 0, errors.NewCandidateCreationError(fmt.Errorf("response is missing applicant id"))
	}

	c.logger.Info("pushed candidate to tracking system", map[string]interface{}{
		"firstName":   req.FirstName,
		"lastName":    req.LastName,
		"applicantId": result.ID,
	})
	return result.ID, nil
}

// SetVacancyStatus posts a status transition for the applicant on the
// referral vacancy and returns the status id echoed by the API.
func (c *Client) SetVacancyStatus(ctx context.Context, applicantID int64, upd StatusUpdate) (int64, error) {
	statusID := upd.StatusID
	if statusID == 0 {
		statusID = c.initStatus
	}

	payload := map[string]interface{}{
		"vacancy":          c.vacancyID,
		"status":           statusID,
		"comment":          upd.Comment,
		"files":            fileRefs(upd.FileIDs),
		"rejection_reason": nil,
	}

	var result struct {
		Status int64 `json:"status"`
	}
	path := fmt.Sprintf("/account/%d/applicants/%d/vacancy", c.accountID, applicantID)
	if err := c.postJSON(ctx, "set_vacancy_status", path, payload, &result); err != nil {
		return 0, err
	}

	c.logger.Info("pushed applicant vacancy status", map[string]interface{}{
		"applicantId": applicantID,
		"statusId":    statusID,
		"comment":     upd.Comment,
	})
	return result.Status, nil
}

// UploadFile uploads one file and returns its external id. Uploads are not
// retried; failures surface immediately.
func (c *Client) UploadFile(ctx context.Context, data []byte) (int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "file")
	if err != nil {
		return 0, errors.NewUploadError(err)
	}
	if _, err := fw.Write(data); err != nil {
		return 0, errors.NewUploadError(err)
	}
	if err := mw.Close(); err != nil {
		return 0, errors.NewUploadError(err)
	}

	path := fmt.Sprintf("/account/%d/upload", c.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return 0, errors.NewUploadError(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpSession().Do(req)
	if err != nil {
		metrics.FileUploadFailures.Inc()
		return 0, errors.NewUploadError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.FileUploadFailures.Inc()
		return 0, errors.NewUploadError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.FileUploadFailures.Inc()
		return 0, errors.NewUploadError(fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, string(body)))
	}

	var result struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		metrics.FileUploadFailures.Inc()
		return 0, errors.NewUploadError(err)
	}
	if result.ID == 0 {
		metrics.FileUploadFailures.Inc()
		return 0, errors.NewFileIDMissingError(string(body))
	}

	return result.ID, nil
}

// UploadFiles uploads files concurrently (bounded) and returns their ids in
// input order. Any failure fails the whole batch.
func (c *Client) UploadFiles(ctx context.Context, files [][]byte) ([]int64, error) {
	ids := make([]int64, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.pageConcurrency)
	for i, data := range files {
		i, data := i, data
		g.Go(func() error {
			id, err := c.UploadFile(gctx, data)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ids, nil
}

// VacancyStatusApplicants lists all applicants currently at the given status
// on the given vacancy, across all pages.
func (c *Client) VacancyStatusApplicants(ctx context.Context, vacancyID, statusID int64) ([]ApplicantSummary, error) {
	query := url.Values{}
	query.Set("vacancy", fmt.Sprintf("%d", vacancyID))
	query.Set("status", fmt.Sprintf("%d", statusID))

	path := fmt.Sprintf("/account/%d/applicants", c.accountID)
	return fetchAll[ApplicantSummary](ctx, c, "list_applicants", path, query)
}

// ApplicantLog fetches the applicant's full external change log.
func (c *Client) ApplicantLog(ctx context.Context, applicantID int64) ([]LogEntry, error) {
	path := fmt.Sprintf("/account/%d/applicants/%d/log", c.accountID, applicantID)
	return fetchAll[LogEntry](ctx, c, "applicant_log", path, nil)
}

// RejectionReason resolves a rejection-reason id to its display text. The
// catalog is loaded lazily and cached; on a cache miss it is reloaded once
// before the id is declared unknown.
func (c *Client) RejectionReason(ctx context.Context, reasonID int64) (string, error) {
	c.reasonsMu.Lock()
	defer c.reasonsMu.Unlock()

	if c.reasons == nil {
		if err := c.loadRejectionReasons(ctx); err != nil {
			return "", err
		}
	}
	if name, ok := c.reasons[reasonID]; ok {
		return name, nil
	}

	// Refresh once in case the catalog changed since the first load.
	if err := c.loadRejectionReasons(ctx); err != nil {
		return "", err
	}
	if name, ok := c.reasons[reasonID]; ok {
		return name, nil
	}

	return "", errors.NewUnknownRejectionReasonError(reasonID)
}

type rejectionReason struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// caller holds reasonsMu
func (c *Client) loadRejectionReasons(ctx context.Context) error {
	path := fmt.Sprintf("/account/%d/rejection_reasons", c.accountID)
	reasons, err := fetchAll[rejectionReason](ctx, c, "rejection_reasons", path, nil)
	if err != nil {
		return err
	}

	c.reasons = make(map[int64]string, len(reasons))
	for _, r := range reasons {
		c.reasons[r.ID] = r.Name
	}
	return nil
}

// --- pagination ---

type page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// fetchAll reads page 1 synchronously to learn the page count, then fetches
// pages 2..N with bounded concurrency. Items come back in page order with
// intra-page order preserved, regardless of fetch completion order.
func fetchAll[T any](ctx context.Context, c *Client, operation, path string, query url.Values) ([]T, error) {
	first, err := fetchPage[T](ctx, c, operation, path, query, 0)
	if err != nil {
		return nil, err
	}
	if first.Total <= 1 {
		return first.Items, nil
	}

	pages := make([][]T, first.Total+1)
	pages[1] = first.Items

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.pageConcurrency)
	for i := 2; i <= first.Total; i++ {
		i := i
		g.Go(func() error {
			p, err := fetchPage[T](gctx, c, operation, path, query, i)
			if err != nil {
				return err
			}
			pages[i] = p.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []T
	for _, p := range pages {
		items = append(items, p...)
	}
	return items, nil
}

func fetchPage[T any](ctx context.Context, c *Client, operation, path string, query url.Values, pageNum int) (page[T], error) {
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	if pageNum > 0 {
		q.Set("page", fmt.Sprintf("%d", pageNum))
	}

	var p page[T]
	if err := c.getJSON(ctx, operation, path, q, &p); err != nil {
		return page[T]{}, err
	}
	return p, nil
}

// --- transport with retry ---

func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	return c.withRetry(ctx, operation, func() error {
		return c.doJSON(ctx, http.MethodGet, operation, path, query, nil, out)
	})
}

func (c *Client) postJSON(ctx context.Context, operation, path string, body interface{}, out interface{}) error {
	return c.withRetry(ctx, operation, func() error {
		return c.doJSON(ctx, http.MethodPost, operation, path, nil, body, out)
	})
}

// withRetry runs fn up to retryAttempts times with a fixed wait between
// attempts. Network errors and non-2xx responses count as transient.
func (c *Client) withRetry(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == retryAttempts {
			break
		}

		metrics.HuntflowRequestRetries.WithLabelValues(operation).Inc()
		c.logger.Debug("retrying request", map[string]interface{}{
			"operation": operation,
			"attempt":   attempt,
			"error":     err.Error(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryWait):
		}
	}
	return err
}

func (c *Client) doJSON(ctx context.Context, method, operation, path string, query url.Values, body interface{}, out interface{}) error {
	start := time.Now()
	defer func() {
		metrics.HuntflowRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpSession().Do(req)
	if err != nil {
		return errors.NewTransientNetworkError(operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewTransientNetworkError(operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewTransientNetworkError(operation,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

package remote

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

	"golang.org/x/time/rate"
)

const (
	// defaultTimeout bounds a single HTTP round trip.
	defaultTimeout = 30 * time.Second

	// dueDateLayout is the wire format of card due dates.
	dueDateLayout = "2006-01-02"

	// boardDockName is the dock entry that points at a project's card table.
	boardDockName = "kanban_board"
)

// HTTPConfig holds the settings of the production client.
type HTTPConfig struct {
	BaseURL       string
	AccountID     string
	Token         string
	UserAgent     string
	RateLimit     float64 // requests per second, <= 0 disables limiting
	Burst         int
	RetryAttempts int
	RetryDelay    time.Duration
	Timeout       time.Duration
}

// HTTPClient talks JSON to the remote REST API. Requests are rate limited
// with a token bucket and retried on 429 and 5xx answers.
type HTTPClient struct {
	cfg     HTTPConfig
	base    string
	http    *http.Client
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient creates a client for the account at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote: base url is required")
	}
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("remote: account id is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "boardmirror"
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPClient{
		cfg:     cfg,
		base:    strings.TrimRight(cfg.BaseURL, "/") + "/" + url.PathEscape(cfg.AccountID),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		sleep:   sleepContext,
	}, nil
}

// AccountID returns the configured account.
func (c *HTTPClient) AccountID() string { return c.cfg.AccountID }

// ─── Wire types ──────────────────────────────────────────────────────────────

type wireRef struct {
	ID int64 `json:"id"`
}

type wireDock struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type wireProject struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	AppURL      string     `json:"app_url"`
	Dock        []wireDock `json:"dock"`
}

func (w wireProject) toProject() Project {
	p := Project{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Status:      ProjectStatus(w.Status),
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		URL:         w.AppURL,
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	for _, d := range w.Dock {
		if d.Name == boardDockName && d.Enabled && d.ID != 0 {
			id := d.ID
			p.BoardID = &id
			break
		}
	}
	return p
}

type wireColumn struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Position   *int   `json:"position"`
	CardsCount int    `json:"cards_count"`
}

type wireCard struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Completed bool      `json:"completed"`
	DueOn     string    `json:"due_on"`
	Assignees []Person  `json:"assignees"`
	Parent    wireRef   `json:"parent"`
	Bucket    wireRef   `json:"bucket"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	AppURL    string    `json:"app_url"`
}

func (w wireCard) toCard(projectID int64) Card {
	c := Card{
		ID:        w.ID,
		ProjectID: projectID,
		ColumnID:  w.Parent.ID,
		Title:     w.Title,
		Content:   w.Content,
		Completed: w.Completed,
		Assignees: w.Assignees,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
		URL:       w.AppURL,
	}
	if w.Bucket.ID != 0 {
		c.ProjectID = w.Bucket.ID
	}
	if w.DueOn != "" {
		if due, err := time.Parse(dueDateLayout, w.DueOn); err == nil {
			c.DueOn = &due
		}
	}
	return c
}

type wireCardWrite struct {
	Title       *string  `json:"title,omitempty"`
	Content     *string  `json:"content,omitempty"`
	DueOn       *string  `json:"due_on,omitempty"`
	AssigneeIDs *[]int64 `json:"assignee_ids,omitempty"`
	Completed   *bool    `json:"completed,omitempty"`
}

func formatDue(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dueDateLayout)
	return &s
}

// ─── Projects ────────────────────────────────────────────────────────────────

// ListProjects returns one page of projects with the given status.
func (c *HTTPClient) ListProjects(ctx context.Context, status ProjectStatus, page int) ([]Project, error) {
	q := url.Values{}
	if status != "" && status != StatusActive {
		q.Set("status", string(status))
	}
	q.Set("page", strconv.Itoa(page))

	var wire []wireProject
	if err := c.do(ctx, http.MethodGet, "/projects.json", q, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(wire))
	for _, w := range wire {
		p := w.toProject()
		if status != "" {
			p.Status = status
		}
		out = append(out, p)
	}
	return out, nil
}

// GetProject fetches a project by id.
func (c *HTTPClient) GetProject(ctx context.Context, projectID int64) (*Project, error) {
	var wire wireProject
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d.json", projectID), nil, nil, &wire); err != nil {
		return nil, err
	}
	p := wire.toProject()
	return &p, nil
}

// ─── Columns & cards ─────────────────────────────────────────────────────────

// GetColumn fetches a column. Responses without a title are reported as
// ErrNotFound since they are not board columns.
func (c *HTTPClient) GetColumn(ctx context.Context, projectID, columnID int64) (*Column, error) {
	path := fmt.Sprintf("/buckets/%d/card_tables/columns/%d.json", projectID, columnID)
	var wire wireColumn
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &wire); err != nil {
		return nil, err
	}
	if strings.TrimSpace(wire.Title) == "" {
		return nil, fmt.Errorf("column %d has no title: %w", columnID, ErrNotFound)
	}
	if wire.ID == 0 {
		wire.ID = columnID
	}
	return &Column{
		ID:         wire.ID,
		ProjectID:  projectID,
		Title:      wire.Title,
		Position:   wire.Position,
		CardsCount: wire.CardsCount,
	}, nil
}

// ListCards returns one page of the cards in a column.
func (c *HTTPClient) ListCards(ctx context.Context, projectID, columnID int64, page int) ([]Card, error) {
	path := fmt.Sprintf("/buckets/%d/card_tables/lists/%d/cards.json", projectID, columnID)
	q := url.Values{"page": {strconv.Itoa(page)}}

	var wire []wireCard
	if err := c.do(ctx, http.MethodGet, path, q, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]Card, 0, len(wire))
	for _, w := range wire {
		card := w.toCard(projectID)
		if card.ColumnID == 0 {
			card.ColumnID = columnID
		}
		out = append(out, card)
	}
	return out, nil
}

// CreateCard adds a card to a column.
func (c *HTTPClient) CreateCard(ctx context.Context, projectID, columnID int64, in CardCreate) (*Card, error) {
	path := fmt.Sprintf("/buckets/%d/card_tables/lists/%d/cards.json", projectID, columnID)
	body := wireCardWrite{Title: &in.Title, DueOn: formatDue(in.DueOn)}
	if in.Content != "" {
		body.Content = &in.Content
	}

	var wire wireCard
	if err := c.do(ctx, http.MethodPost, path, nil, body, &wire); err != nil {
		return nil, err
	}
	card := wire.toCard(projectID)
	if card.ColumnID == 0 {
		card.ColumnID = columnID
	}
	return &card, nil
}

// UpdateCard applies a partial update to a card.
func (c *HTTPClient) UpdateCard(ctx context.Context, projectID, cardID int64, in CardUpdate) (*Card, error) {
	path := fmt.Sprintf("/buckets/%d/card_tables/cards/%d.json", projectID, cardID)
	body := wireCardWrite{
		Title:       in.Title,
		Content:     in.Content,
		DueOn:       formatDue(in.DueOn),
		AssigneeIDs: in.AssigneeIDs,
		Completed:   in.Completed,
	}

	var wire wireCard
	if err := c.do(ctx, http.MethodPut, path, nil, body, &wire); err != nil {
		return nil, err
	}
	card := wire.toCard(projectID)
	return &card, nil
}

// MoveCard moves a card into another column of the same board.
func (c *HTTPClient) MoveCard(ctx context.Context, projectID, cardID, columnID int64) error {
	path := fmt.Sprintf("/buckets/%d/card_tables/cards/%d/moves.json", projectID, cardID)
	body := map[string]int64{"column_id": columnID}
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

// CreateComment posts a comment on any recording, cards included.
func (c *HTTPClient) CreateComment(ctx context.Context, projectID, recordingID int64, content string) (*Comment, error) {
	path := fmt.Sprintf("/buckets/%d/recordings/%d/comments.json", projectID, recordingID)
	var out Comment
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ─── People ──────────────────────────────────────────────────────────────────

// ListPeople returns one page of the account's people directory.
func (c *HTTPClient) ListPeople(ctx context.Context, page int) ([]Person, error) {
	q := url.Values{"page": {strconv.Itoa(page)}}
	var out []Person
	if err := c.do(ctx, http.MethodGet, "/people.json", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListProjectPeople returns everyone with access to a project.
func (c *HTTPClient) ListProjectPeople(ctx context.Context, projectID int64) ([]Person, error) {
	var out []Person
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/people.json", projectID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Transport ───────────────────────────────────────────────────────────────

// do performs one logical request, waiting on the limiter before every
// attempt and retrying 429/5xx answers and transport errors.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: encoding %s %s: %w", method, path, err)
		}
	}

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			if ra := retryAfter(lastErr); ra > 0 {
				delay = ra
			}
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retry, err := c.attempt(ctx, method, path, target, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	return lastErr
}

// retryAfterError wraps a retryable answer with the server's requested delay.
type retryAfterError struct {
	*APIError
	after time.Duration
}

func (e *retryAfterError) Unwrap() error { return e.APIError }

func retryAfter(err error) time.Duration {
	if ra, ok := err.(*retryAfterError); ok {
		return ra.after
	}
	return 0
}

func (c *HTTPClient) attempt(ctx context.Context, method, path, target string, payload []byte, out any) (bool, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return false, fmt.Errorf("remote: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("remote: %s %s: %v: %w", method, path, err, ErrRemote)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				return true, &retryAfterError{APIError: apiErr, after: time.Duration(secs) * time.Second}
			}
			return true, apiErr
		}
		return false, apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("remote: decoding %s %s: %v: %w", method, path, err, ErrRemote)
	}
	return false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

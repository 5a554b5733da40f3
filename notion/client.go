// Package notion implements the task store boundary against the Notion
// API. Tasks live in a single Notion database; the scheduler reads
// candidate pages and writes back only the scheduled-date properties.
package notion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/taskweave/taskweave/retry"
	"github.com/taskweave/taskweave/task"
)

const (
	defaultBaseURL   = "https://api.notion.com"
	notionAPIVersion = "2022-06-28"
)

// Database property names the scheduler reads and writes.
const (
	propTitle         = "Task name"
	propRank          = "Rank"
	propDurationHours = "Est Duration Hrs"
	propDueDate       = "Due date"
	propScheduled     = "Scheduled Date"
	propLastScheduled = "Last Scheduled"
	propStatus        = "Status"
	propAutoSchedule  = "Auto Schedule"
	propOwner         = "Owner"
)

// defaultDurationMinutes applies when a task has no duration estimate.
const defaultDurationMinutes = 60

// Config holds configuration for the Notion client.
type Config struct {
	APIKey     string
	DatabaseID string
	BaseURL    string
	HTTPClient *http.Client
	Location   *time.Location // for date-only due dates
}

// Client implements task.Store against the Notion API.
type Client struct {
	config Config
}

// NewClient creates a Notion client with the given config.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Client{config: cfg}
}

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion api: status %d: %s", e.StatusCode, e.Message)
}

// queryBody is the static part of the database query: non-terminal,
// non-excluded status with a rank present, served rank ascending.
const queryBody = `{
	"page_size": 100,
	"filter": {"and": [
		{"property": "Status", "status": {"does_not_equal": "Completed"}},
		{"property": "Status", "status": {"does_not_equal": "Canceled"}},
		{"property": "Status", "status": {"does_not_equal": "Backlog"}},
		{"property": "Rank", "number": {"is_not_empty": true}}
	]},
	"sorts": [{"property": "Rank", "direction": "ascending"}]
}`

// ListSchedulable queries the database for candidate tasks, following
// pagination. The auto-schedule opt-out cannot be expressed server-side
// for a missing checkbox, so it is applied by the caller's post-filter.
func (c *Client) ListSchedulable(ctx context.Context, owner string) ([]*task.Task, error) {
	body := queryBody
	if owner != "" {
		body, _ = sjson.SetRaw(body, "filter.and.-1",
			fmt.Sprintf(`{"property": %q, "people": {"contains": %q}}`, propOwner, owner))
	}

	var tasks []*task.Task
	cursor := ""
	for {
		reqBody := body
		if cursor != "" {
			reqBody, _ = sjson.Set(reqBody, "start_cursor", cursor)
		}
		url := fmt.Sprintf("%s/v1/databases/%s/query", c.config.BaseURL, c.config.DatabaseID)
		respBody, err := c.do(ctx, http.MethodPost, url, []byte(reqBody))
		if err != nil {
			return nil, fmt.Errorf("query tasks: %w", err)
		}

		for _, page := range gjson.GetBytes(respBody, "results").Array() {
			tasks = append(tasks, c.parseTask(page))
		}
		if !gjson.GetBytes(respBody, "has_more").Bool() {
			return tasks, nil
		}
		cursor = gjson.GetBytes(respBody, "next_cursor").String()
	}
}

// UpdateSchedule patches the page's scheduled date range and the
// last-scheduled marker. No other properties are touched, so repeating
// the same write is a no-op on the page's visible state.
func (c *Client) UpdateSchedule(ctx context.Context, id string, start, end, scheduledAt time.Time) error {
	body, _ := sjson.Set("", "properties."+propScheduled+".date.start", start.Format(time.RFC3339))
	body, _ = sjson.Set(body, "properties."+propScheduled+".date.end", end.Format(time.RFC3339))
	body, _ = sjson.Set(body, "properties."+propLastScheduled+".date.start", scheduledAt.Format(time.RFC3339))

	url := fmt.Sprintf("%s/v1/pages/%s", c.config.BaseURL, id)
	if _, err := c.do(ctx, http.MethodPatch, url, []byte(body)); err != nil {
		return fmt.Errorf("update schedule for page %s: %w", id, err)
	}
	return nil
}

// do performs one API request. Rate limits and server errors come back
// marked transient so the write-back retry policy can act on them.
func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Notion-Version", notionAPIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, retry.Transient(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Transient(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    gjson.GetBytes(respBody, "message").String(),
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, retry.Transient(apiErr)
		}
		return nil, apiErr
	}
	return respBody, nil
}

// parseTask normalizes one Notion page to the task model.
func (c *Client) parseTask(page gjson.Result) *task.Task {
	props := page.Get("properties")
	t := &task.Task{
		ID:           page.Get("id").String(),
		URL:          page.Get("url").String(),
		Title:        props.Get(propTitle + ".title.0.plain_text").String(),
		Status:       task.Status(props.Get(propStatus + ".status.name").String()),
		Owner:        props.Get(propOwner + ".people.0.id").String(),
		AutoSchedule: true,
	}

	if rank := props.Get(propRank + ".number"); rank.Exists() && rank.Type != gjson.Null {
		v := rank.Float()
		t.Rank = &v
	}

	// Duration is stored in hours; normalize to minutes, defaulting a
	// missing estimate to one hour.
	t.DurationMinutes = defaultDurationMinutes
	if hrs := props.Get(propDurationHours + ".number"); hrs.Exists() && hrs.Type != gjson.Null && hrs.Float() > 0 {
		t.DurationMinutes = int(hrs.Float() * 60)
	}

	// An absent checkbox means eligible; only an explicit false opts out.
	if auto := props.Get(propAutoSchedule + ".checkbox"); auto.Exists() && auto.Type != gjson.Null {
		t.AutoSchedule = auto.Bool()
	}

	t.DueDate = c.parseTime(props.Get(propDueDate + ".date.start"))
	t.ScheduledStart = c.parseTime(props.Get(propScheduled + ".date.start"))
	t.ScheduledEnd = c.parseTime(props.Get(propScheduled + ".date.end"))
	t.LastScheduledAt = c.parseTime(props.Get(propLastScheduled + ".date.start"))
	return t
}

// parseTime handles both Notion datetime values (RFC 3339) and date-only
// values, which are taken as midnight in the scheduling timezone.
func (c *Client) parseTime(v gjson.Result) *time.Time {
	if !v.Exists() || v.Type == gjson.Null || v.String() == "" {
		return nil
	}
	s := v.String()
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return &ts
	}
	if d, err := time.ParseInLocation("2006-01-02", s, c.config.Location); err == nil {
		return &d
	}
	return nil
}

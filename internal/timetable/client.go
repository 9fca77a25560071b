package timetable

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
	"github.com/orangebtw/HerzenSchedulerBot/internal/schedule"
)

const (
	defaultBaseURL = "https://old-guide.herzen.spb.ru"
	groupsPath     = "/static/schedule.php"
	schedulePath   = "/static/schedule_dates.php"

	// The old guide serves a different page to unknown agents.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36"
)

// Client fetches the faculty directory and group timetables from the Herzen
// schedule pages. It implements schedule.Fetcher. There is no implicit
// retry; callers decide what a failed fetch means.
type Client struct {
	baseURL string
	http    *http.Client
	loc     *time.Location
}

// NewClient builds a Client that parses timetable dates in the given
// location. An empty baseURL selects the production site.
func NewClient(baseURL string, loc *time.Location) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		loc:     loc,
	}
}

// FetchGroups downloads and parses the faculty/form/stage/course/group tree.
func (c *Client) FetchGroups(ctx context.Context) ([]domain.Faculty, error) {
	body, err := c.get(ctx, c.baseURL+groupsPath)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	groups, err := ParseGroups(body)
	if err != nil {
		return nil, fmt.Errorf("parse groups: %w", err)
	}
	return groups, nil
}

// FetchSubjects downloads and parses one group's timetable. A nil result
// with nil error means the source has no classes for the requested period.
func (c *Client) FetchSubjects(ctx context.Context, key schedule.Key) ([]domain.Subject, error) {
	q := url.Values{}
	q.Set("id_group", key.GroupID)
	if key.From != "" {
		q.Set("date1", key.From)
	}
	if key.To != "" {
		q.Set("date2", key.To)
	}

	body, err := c.get(ctx, c.baseURL+schedulePath+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	subjects, err := ParseSubjects(body, key.Subgroup, c.loc)
	if err != nil {
		return nil, fmt.Errorf("parse subjects for group %s: %w", key.GroupID, err)
	}
	return subjects, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

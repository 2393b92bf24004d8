// Package lms is the client for the learning-management REST API:
// token-gated access, paginated list fetching, per-record detail calls
// and the section/material publishing endpoints.
package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pavel4en/lms-api-app/internal/httpx"
	"github.com/Pavel4en/lms-api-app/internal/report"
)

// Client talks to the LMS API. All calls go through ensureToken first;
// pagination, throttling and retry behavior are parameterized per call
// site through the struct fields.
type Client struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string

	HTTP     *http.Client
	Retry    httpx.Policy
	Reporter report.Reporter

	PageSize int

	// Inter-page throttle delays.
	CoursePageDelay  time.Duration
	SessionPageDelay time.Duration

	mu   sync.Mutex
	cred credential

	// nowFunc overrides time.Now in tests.
	nowFunc func() time.Time
}

// Options carries the constructor knobs that are commonly non-default.
type Options struct {
	Retry            httpx.Policy
	Reporter         report.Reporter
	PageSize         int
	CoursePageDelay  time.Duration
	SessionPageDelay time.Duration
	Timeout          time.Duration
}

func New(baseURL, tokenURL, clientID, clientSecret string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	tr := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		BaseURL:          baseURL,
		TokenURL:         tokenURL,
		ClientID:         clientID,
		ClientSecret:     clientSecret,
		HTTP:             &http.Client{Timeout: timeout, Transport: tr},
		Retry:            opts.Retry,
		Reporter:         opts.Reporter,
		PageSize:         pageSizeOrDefault(opts.PageSize),
		CoursePageDelay:  opts.CoursePageDelay,
		SessionPageDelay: opts.SessionPageDelay,
	}
}

func (c *Client) now() time.Time {
	if c.nowFunc != nil {
		return c.nowFunc()
	}
	return time.Now()
}

// getJSON performs an authorized GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	return httpx.DoJSON(
		ctx,
		c.HTTP,
		func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return nil, err
			}
			r.Header.Set("Accept", "application/json")
			r.Header.Set("Authorization", "Bearer "+token)
			return r, nil
		},
		out,
		c.Retry,
	)
}

// postJSON performs an authorized POST with a JSON body.
func (c *Client) postJSON(ctx context.Context, rawURL string, payload, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return httpx.DoJSON(
		ctx,
		c.HTTP,
		func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(b))
			if err != nil {
				return nil, err
			}
			r.Header.Set("Content-Type", "application/json")
			r.Header.Set("Accept", "application/json")
			r.Header.Set("Authorization", "Bearer "+token)
			return r, nil
		},
		out,
		c.Retry,
	)
}

// fetchPages walks ?page&per_page from page 1 until an empty page,
// sleeping delay between pages. On a mid-loop failure it returns the
// rows accumulated so far together with the error; callers decide
// whether partial data is usable. kind is the record label used in
// log lines ("курсов", "сеансов").
func fetchPages[T any](ctx context.Context, c *Client, listURL string, delay time.Duration, kind string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return all, err
		}

		u, err := url.Parse(listURL)
		if err != nil {
			return all, fmt.Errorf("lms: invalid url %q: %w", listURL, err)
		}
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.PageSize))
		u.RawQuery = q.Encode()

		_, body, err := httpx.Do(
			ctx,
			c.HTTP,
			func(ctx context.Context) (*http.Request, error) {
				r, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
				if err != nil {
					return nil, err
				}
				r.Header.Set("Accept", "application/json")
				r.Header.Set("Authorization", "Bearer "+token)
				return r, nil
			},
			c.Retry,
		)
		if err != nil {
			return all, fmt.Errorf("lms: page %d of %s failed: %w", page, listURL, err)
		}

		var items []T
		if err := decodePage(body, &items); err != nil {
			return all, fmt.Errorf("lms: page %d of %s: %w", page, listURL, err)
		}
		report.Logf(c.Reporter, "Страница %d: найдено %d %s.", page, len(items), kind)
		if len(items) == 0 {
			return all, nil
		}
		all = append(all, items...)

		if err := sleepCtx(ctx, delay); err != nil {
			return all, err
		}
	}
}

// ListCourses fetches every course, page by page.
func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	report.Logf(c.Reporter, "Запрос списка курсов...")
	courses, err := fetchPages[Course](ctx, c, c.BaseURL+"/courses", c.CoursePageDelay, "курсов")
	if err != nil {
		report.Logf(c.Reporter, "Ошибка получения курсов: %v", err)
		return courses, err
	}
	report.Progressf(c.Reporter, "Загрузка курсов завершена.")
	return courses, nil
}

// ListCourseSessions fetches every session of a course.
func (c *Client) ListCourseSessions(ctx context.Context, courseID ID) ([]Session, error) {
	listURL := fmt.Sprintf("%s/courses/%s/course_sessions", c.BaseURL, courseID)
	sessions, err := fetchPages[Session](ctx, c, listURL, c.SessionPageDelay, "сеансов")
	if err != nil {
		report.Logf(c.Reporter, "Ошибка получения сеансов для курса %s: %v", courseID, err)
	}
	return sessions, err
}

// GetCourse fetches the course detail view (includes sections).
func (c *Client) GetCourse(ctx context.Context, courseID ID) (*Course, error) {
	var course Course
	if err := c.getJSON(ctx, fmt.Sprintf("%s/courses/%s", c.BaseURL, courseID), &course); err != nil {
		return nil, fmt.Errorf("lms: course %s detail: %w", courseID, err)
	}
	report.Logf(c.Reporter, "Получены детали курса ID %s.", courseID)
	return &course, nil
}

// GetSessionDetail fetches the per-session detail with participants.
func (c *Client) GetSessionDetail(ctx context.Context, courseID, sessionID ID) (*SessionDetail, error) {
	var detail SessionDetail
	u := fmt.Sprintf("%s/courses/%s/course_sessions/%s", c.BaseURL, courseID, sessionID)
	if err := c.getJSON(ctx, u, &detail); err != nil {
		return nil, fmt.Errorf("lms: session %s of course %s detail: %w", sessionID, courseID, err)
	}
	return &detail, nil
}

// ListCourseTypes fetches the course type reference list.
func (c *Client) ListCourseTypes(ctx context.Context) ([]CourseType, error) {
	_, body, err := c.getRaw(ctx, c.BaseURL+"/course_types")
	if err != nil {
		return nil, fmt.Errorf("lms: course types: %w", err)
	}
	var types []CourseType
	if err := decodePage(body, &types); err != nil {
		return nil, fmt.Errorf("lms: course types: %w", err)
	}
	return types, nil
}

func (c *Client) getRaw(ctx context.Context, rawURL string) (*http.Response, []byte, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, nil, err
	}
	return httpx.Do(
		ctx,
		c.HTTP,
		func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return nil, err
			}
			r.Header.Set("Accept", "application/json")
			r.Header.Set("Authorization", "Bearer "+token)
			return r, nil
		},
		c.Retry,
	)
}

// CreateSection creates a named section inside a course and returns
// its id.
func (c *Client) CreateSection(ctx context.Context, courseID ID, name, iconURL string) (ID, error) {
	var resp sectionResponse
	u := fmt.Sprintf("%s/courses/%s/sections", c.BaseURL, courseID)
	payload := sectionRequest{Section: sectionPayload{Name: name, IconRemoteURL: iconURL}}
	if err := c.postJSON(ctx, u, payload, &resp); err != nil {
		return "", fmt.Errorf("lms: create section %q in course %s: %w", name, courseID, err)
	}
	return resp.ID, nil
}

// AddMaterial posts a single-paragraph rich-text material into a
// section. template's {link} placeholder is substituted with link.
func (c *Client) AddMaterial(ctx context.Context, sectionID ID, name, link, template string) error {
	text := replaceLink(template, link)
	payload := materialRequest{Material: materialPayload{
		Name:        name,
		Description: "Описание отсутствует",
		Content: materialContent{
			Blocks: []contentBlock{{
				Type: "paragraph",
				ID:   uuid.New().String(),
				Data: blockData{Text: text},
			}},
			Version: "2.25.0",
			Time:    c.now().UnixMilli(),
		},
	}}
	u := fmt.Sprintf("%s/sections/%s/materials", c.BaseURL, sectionID)
	if err := c.postJSON(ctx, u, payload, nil); err != nil {
		return fmt.Errorf("lms: add material %q to section %s: %w", name, sectionID, err)
	}
	return nil
}

func replaceLink(template, link string) string {
	return strings.ReplaceAll(template, "{link}", link)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

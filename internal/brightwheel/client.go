package brightwheel

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
	"sync"
)

const DefaultBaseURL = "https://schools.mybrightwheel.com/api/v1"

// DefaultMaxRecords caps how many activities a single page may yield.
const DefaultMaxRecords = 5

// clientVersion mimics the web frontend; the API rejects requests without it.
const clientVersion = "b15cec31e66fa803de35b53260872aa7e5e84e29"

const maxBodyBytes = 2 * 1024 * 1024

type Credentials struct {
	Email    string
	Password string
}

// Client talks to the Brightwheel guardian API. It owns the session cookie:
// the first call that needs one performs the login, every later call reuses
// it. There is no refresh path; a session, once obtained, is trusted for the
// lifetime of the client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	maxRecords int

	mu      sync.Mutex
	session string // first Set-Cookie pair from the login response
}

func NewClient(httpClient *http.Client, baseURL string, creds Credentials, maxRecords int) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		creds:      creds,
		maxRecords: maxRecords,
	}
}

func setBaseHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-type", "application/json")
	req.Header.Set("X-Client-Name", "web")
	req.Header.Set("X-Client-Version", clientVersion)
}

// Authenticate returns the cached session cookie, logging in first when none
// exists. Success is exactly 201 plus a Set-Cookie header; the session is the
// first cookie pair, truncated at the first ';'. Failures surface as
// *AuthError carrying the raw response body.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.session
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	reqBody, err := json.Marshal(map[string]any{
		"user": map[string]string{"email": c.creds.Email, "password": c.creds.Password},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	setBaseHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("brightwheel login: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode != http.StatusCreated {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	cookies := resp.Header.Values("Set-Cookie")
	if len(cookies) == 0 {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: "login response carries no session cookie"}
	}
	session, _, _ := strings.Cut(cookies[0], ";")
	session = strings.TrimSpace(session)
	if session == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: "login response carries an empty session cookie"}
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	return session, nil
}

// get performs an authenticated GET and decodes the JSON response into out.
// Non-2xx responses become *FetchError with the raw body preserved for error
// formatting.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	session, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}

	target := c.baseURL + "/" + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	setBaseHeaders(req)
	req.Header.Set("Cookie", session)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brightwheel get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("brightwheel decode %s: %w", endpoint, err)
	}
	return nil
}

// Students resolves the authenticated guardian and lists their students.
// Guardian and student counts are small; no pagination.
func (c *Client) Students(ctx context.Context) ([]Student, error) {
	var me Guardian
	if err := c.get(ctx, "users/me", nil, &me); err != nil {
		return nil, err
	}

	var list studentList
	if err := c.get(ctx, "guardians/"+url.PathEscape(me.ObjectID)+"/students", nil, &list); err != nil {
		return nil, err
	}

	students := make([]Student, 0, len(list.Students))
	for _, entry := range list.Students {
		students = append(students, entry.Student)
	}
	return students, nil
}

// Activities fetches one page of a student's feed, optionally limited to one
// action type. The page_size hint is advisory: whatever the server returns is
// truncated client-side to the configured max, keeping server order.
func (c *Client) Activities(ctx context.Context, studentID string, filter ActionType) (ActivityPage, error) {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(c.maxRecords))
	if filter != "" {
		q.Set("action_type", string(filter))
	}

	var page ActivityPage
	if err := c.get(ctx, "students/"+url.PathEscape(studentID)+"/activities", q, &page); err != nil {
		return ActivityPage{}, err
	}
	if len(page.Activities) > c.maxRecords {
		page.Activities = page.Activities[:c.maxRecords]
	}
	return page, nil
}

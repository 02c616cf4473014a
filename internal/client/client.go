package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rollcall/internal/attendance"
	"rollcall/internal/course"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string { return e.Detail }

// HistoryEntry is one closed session. Teachers get Students, students get
// Attended.
type HistoryEntry struct {
	SessionID string                  `json:"_id"`
	Date      time.Time               `json:"date"`
	Students  []attendance.Submission `json:"students,omitempty"`
	Attended  *bool                   `json:"attended,omitempty"`
}

// NewUser is the body of Register and CreateUser.
type NewUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Client calls the rollcall HTTP API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a client with a request timeout.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Login exchanges credentials for a bearer token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{"username": {email}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	c.Token = out.AccessToken
	return out.AccessToken, nil
}

// Logout revokes the current token on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, u NewUser) error {
	return c.do(ctx, http.MethodPost, "/register", u, nil)
}

// CreateUser creates an account as a teacher.
func (c *Client) CreateUser(ctx context.Context, u NewUser) error {
	return c.do(ctx, http.MethodPost, "/create-user", u, nil)
}

// Courses lists the caller's courses.
func (c *Client) Courses(ctx context.Context) ([]course.View, error) {
	var out []course.View
	err := c.do(ctx, http.MethodGet, "/courses", nil, &out)
	return out, err
}

// CreateCourse adds a course owned by the caller.
func (c *Client) CreateCourse(ctx context.Context, in course.CreateInput) (*course.Course, error) {
	var out struct {
		Course course.Course `json:"course"`
	}
	if err := c.do(ctx, http.MethodPost, "/courses", in, &out); err != nil {
		return nil, err
	}
	return &out.Course, nil
}

// AddStudents enrolls emails and returns the newly added ones.
func (c *Client) AddStudents(ctx context.Context, courseID string, emails []string) ([]string, error) {
	var out struct {
		Added []string `json:"added"`
	}
	body := map[string][]string{"student_emails": emails}
	err := c.do(ctx, http.MethodPost, "/courses/"+url.PathEscape(courseID)+"/students", body, &out)
	return out.Added, err
}

// StartAttendance opens a session and returns its join code.
func (c *Client) StartAttendance(ctx context.Context, courseID string) (string, error) {
	var out struct {
		Code string `json:"code"`
	}
	err := c.do(ctx, http.MethodPost, "/attendance/start", map[string]string{"course_id": courseID}, &out)
	return out.Code, err
}

// EndAttendance closes the open session and returns the server message.
func (c *Client) EndAttendance(ctx context.Context, courseID string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/attendance/end", map[string]string{"course_id": courseID}, &out)
	return out.Message, err
}

// SubmitAttendance checks the caller in with a join code.
func (c *Client) SubmitAttendance(ctx context.Context, courseID, code string) error {
	return c.do(ctx, http.MethodPost, "/attendance/submit", map[string]string{"course_id": courseID, "code": code}, nil)
}

// History returns the closed sessions of a course.
func (c *Client) History(ctx context.Context, courseID string) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := c.do(ctx, http.MethodGet, "/attendance/history/"+url.PathEscape(courseID), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Detail: "request failed"}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &body) != nil || len(body.Detail) == 0 {
		return apiErr
	}
	var s string
	if json.Unmarshal(body.Detail, &s) == nil {
		if s != "" {
			apiErr.Detail = s
		}
		return apiErr
	}
	// non-string details, e.g. validation error lists
	apiErr.Detail = string(body.Detail)
	return apiErr
}

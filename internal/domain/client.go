package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fabfetch/internal/netx"
)

// ErrAppVersionMismatch is the platform's error_code 1002: the advertised app
// version is too old and a fresh version string must be configured before any
// other call will succeed.
var ErrAppVersionMismatch = errors.New("platform rejected the app version")

// APIError is a platform error envelope returned with an HTTP 200.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform error %d: %s", e.Code, e.Message)
}

// User is the authenticated account, including the points balance spent on
// paid message fetches.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	NickName string `json:"nickName"`
	Points   int64  `json:"points"`
}

// ClientOptions configures the platform REST client.
type ClientOptions struct {
	BaseURL     string
	UserAgent   string
	AppVersion  string
	UserID      int64
	AccessToken string
}

// Client talks to the platform's private REST API. Every request carries the
// userid/accesstoken headers and an app-specific user agent.
type Client struct {
	net         *netx.Client
	baseURL     string
	userAgent   string
	userID      int64
	accessToken string
}

// NewClient builds a platform client. The "%version%" placeholder in the
// user-agent template is substituted with the configured app version.
func NewClient(net *netx.Client, opts ClientOptions) *Client {
	return &Client{
		net:         net,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		userAgent:   strings.ReplaceAll(opts.UserAgent, "%version%", opts.AppVersion),
		userID:      opts.UserID,
		accessToken: opts.AccessToken,
	}
}

// SetCredentials installs the identity used on subsequent requests, normally
// right after Login.
func (c *Client) SetCredentials(userID int64, accessToken string) {
	c.userID = userID
	c.accessToken = accessToken
}

// UserID returns the authenticated user id, which the decryptor needs for key
// derivation.
func (c *Client) UserID() int64 { return c.userID }

// Login authenticates with email/password and installs the returned
// credentials on the client.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)

	payload, err := c.request(ctx, http.MethodPost, "/signin", form)
	if err != nil {
		return User{}, err
	}
	var out struct {
		Login struct {
			Token string `json:"token"`
			User  User   `json:"user"`
		} `json:"login"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return User{}, fmt.Errorf("decode login response: %w", err)
	}
	if out.Login.Token == "" {
		return User{}, fmt.Errorf("login response carried no token")
	}
	c.SetCredentials(out.Login.User.ID, out.Login.Token)
	return out.Login.User, nil
}

// FetchUser returns the account behind the configured access token.
func (c *Client) FetchUser(ctx context.Context) (User, error) {
	payload, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/users/%d/info", c.userID), nil)
	if err != nil {
		return User{}, err
	}
	var out struct {
		User User `json:"user"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return User{}, fmt.Errorf("decode user response: %w", err)
	}
	return out.User, nil
}

// FetchLatestMessages lists the newest messages across followed artists,
// optionally filtered to one group.
func (c *Client) FetchLatestMessages(ctx context.Context, groupID int64) ([]Message, error) {
	payload, err := c.request(ctx, http.MethodGet, "/messages", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Messages []rawMessage `json:"messages"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode messages response: %w", err)
	}
	messages := make([]Message, 0, len(out.Messages))
	for _, raw := range out.Messages {
		m := parseMessage(raw)
		if groupID > 0 && m.GroupID != groupID {
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// FetchMessage retrieves one full message. On unpaid messages this spends
// points and returns the authoritative (encrypted) media URLs.
func (c *Client) FetchMessage(ctx context.Context, messageID int64) (Message, error) {
	payload, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/users/%d/message/%d", c.userID, messageID), nil)
	if err != nil {
		return Message{}, err
	}
	var out struct {
		Message rawMessage `json:"message"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return Message{}, fmt.Errorf("decode message response: %w", err)
	}
	return parseMessage(out.Message), nil
}

// request performs one API call and unwraps the platform's error envelope.
func (c *Client) request(ctx context.Context, method, path string, form url.Values) (json.RawMessage, error) {
	var body io.Reader
	contentType := "application/json"
	if form != nil {
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("userid", strconv.FormatInt(c.userID, 10))
	req.Header.Set("accesstoken", c.accessToken)

	resp, err := c.net.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Error *struct {
			Code    int    `json:"error_code"`
			Message string `json:"error_msg"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if envelope.Error != nil {
		if envelope.Error.Code == 1002 {
			return nil, ErrAppVersionMismatch
		}
		return nil, &APIError{Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	return payload, nil
}

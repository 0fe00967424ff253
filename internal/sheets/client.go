// Package sheets is the client for Remote Store A: a Google Apps Script
// web app backed by a spreadsheet, speaking JSON action payloads over a
// single HTTP endpoint.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/veo1flow-25/teman-cors/internal/errs"
	"github.com/veo1flow-25/teman-cors/internal/model"
)

type Client struct {
	endpoint string
	http     *http.Client
}

// New builds a client for the script deployment at endpoint. An empty
// endpoint means Store A is not configured; callers should not construct a
// client at all in that case.
func New(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// actionRequest carries every field the script understands. Unused fields are
// omitted from the wire payload.
type actionRequest struct {
	Action       string          `json:"action,omitempty"`
	Check        string          `json:"check,omitempty"`
	ID           string          `json:"id,omitempty"`
	Type         model.ReportKind `json:"type,omitempty"`
	Year         int             `json:"year,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Email        string          `json:"email,omitempty"`
	PasswordHash string          `json:"password_hash,omitempty"`
	Name         string          `json:"name,omitempty"`
	Token        string          `json:"token,omitempty"`
	ResetLink    string          `json:"resetLink,omitempty"`
}

type envelope struct {
	Status  string             `json:"status"`
	Data    json.RawMessage    `json:"data,omitempty"`
	User    *model.UserProfile `json:"user,omitempty"`
	Users   []model.UserProfile `json:"users,omitempty"`
	Message string             `json:"message,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// get sends the fields as a query string. Apps Script web apps answer GET
// without a preflight, which keeps reads cheap.
func (c *Client) get(ctx context.Context, params map[string]string) (*envelope, error) {
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// post sends the payload as JSON with a text/plain content type: Apps Script
// deployments reject the CORS preflight an application/json body triggers.
func (c *Client) post(ctx context.Context, payload actionRequest) (*envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: script returned %d", errs.ErrUnreachable, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: bad script response: %v", errs.ErrUnreachable, err)
	}
	if env.Status == "error" {
		message := env.Message
		if message == "" {
			message = env.Error
		}
		if message == "" {
			message = "script error"
		}
		return nil, errs.Reject(message)
	}
	return &env, nil
}

// Ping asks the script for a minimal liveness answer without loading data.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, map[string]string{"check": "ping"})
	return err
}

// Probe satisfies the connectivity monitor's probe contract.
func (c *Client) Probe(ctx context.Context) error {
	return c.Ping(ctx)
}

// GetReport fetches one record by id. Absent records are errs.ErrNotFound.
func (c *Client) GetReport(ctx context.Context, id string) (json.RawMessage, error) {
	env, err := c.get(ctx, map[string]string{"id": id})
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, errs.ErrNotFound
	}
	return env.Data, nil
}

// SaveReport upserts one record. Writing the same id twice is
// last-value-wins on the sheet.
func (c *Client) SaveReport(ctx context.Context, rec model.ReportRecord) error {
	_, err := c.post(ctx, actionRequest{
		Action: "SAVE",
		ID:     rec.ID,
		Type:   rec.Type,
		Year:   rec.Year,
		Data:   rec.Data,
	})
	return err
}

// DeleteReport removes one record, best effort.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	_, err := c.post(ctx, actionRequest{Action: "DELETE", ID: id})
	return err
}

// Login delegates the credential check to the script. The script's verdict
// is trusted as-is; password hashes never arrive here in raw form.
func (c *Client) Login(ctx context.Context, email, passwordHash string) (model.UserProfile, error) {
	env, err := c.post(ctx, actionRequest{Action: "LOGIN", Email: email, PasswordHash: passwordHash})
	if err != nil {
		return model.UserProfile{}, err
	}
	if env.User == nil {
		return model.UserProfile{}, errs.Reject("login failed")
	}
	return *env.User, nil
}

func (c *Client) Register(ctx context.Context, email, passwordHash, name string) (model.UserProfile, error) {
	env, err := c.post(ctx, actionRequest{Action: "REGISTER", Email: email, PasswordHash: passwordHash, Name: name})
	if err != nil {
		return model.UserProfile{}, err
	}
	if env.User == nil {
		return model.UserProfile{}, errs.Reject("registration failed")
	}
	return *env.User, nil
}

// RequestReset asks the script to mail a reset link for email. resetLink is
// the callback URL base, built by the caller from the deployment origin.
func (c *Client) RequestReset(ctx context.Context, email, resetLink string) error {
	_, err := c.post(ctx, actionRequest{Action: "RESET_REQUEST", Email: email, ResetLink: resetLink})
	return err
}

func (c *Client) ConfirmReset(ctx context.Context, email, token, newPasswordHash string) error {
	_, err := c.post(ctx, actionRequest{
		Action:       "RESET_CONFIRM",
		Email:        email,
		Token:        token,
		PasswordHash: newPasswordHash,
	})
	return err
}

// ListUsers fetches the full user directory from the sheet.
func (c *Client) ListUsers(ctx context.Context) ([]model.UserProfile, error) {
	env, err := c.get(ctx, map[string]string{"action": "GET_USERS"})
	if err != nil {
		return nil, err
	}
	return env.Users, nil
}

// Package client talks to the PQRS HTTP API. The entity in effect is sent on
// every call instead of being read from shared state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/optimistic"
)

const (
	entityHeader    = "X-Entity-Id"
	requestIDHeader = "X-Request-Id"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	NewID   func() string

	// Cache holds requests as last seen, optimistic changes included.
	Cache *optimistic.Tracker[models.PQRS]
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		NewID:   uuid.NewString,
		Cache:   optimistic.New[models.PQRS](),
	}
}

func (c *Client) do(ctx context.Context, method, path, entityID, requestID string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if entityID != "" {
		req.Header.Set(entityHeader, entityID)
	}
	if requestID != "" {
		req.Header.Set(requestIDHeader, requestID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		return &APIError{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Login exchanges credentials for a session token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (models.User, error) {
	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", "",
		map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return models.User{}, err
	}
	c.Token = resp.Token
	return resp.User, nil
}

func (c *Client) ListPQRs(ctx context.Context, entityID string) ([]models.PQRS, error) {
	var items []models.PQRS
	if err := c.do(ctx, http.MethodGet, "/api/pqr", entityID, "", nil, &items); err != nil {
		return nil, err
	}
	for _, p := range items {
		c.Cache.Put(p.ID, p)
	}
	return items, nil
}

func (c *Client) GetPQR(ctx context.Context, entityID, id string) (models.PQRS, error) {
	var p models.PQRS
	if err := c.do(ctx, http.MethodGet, "/api/pqr/"+id, entityID, "", nil, &p); err != nil {
		return models.PQRS{}, err
	}
	c.Cache.Put(p.ID, p)
	return p, nil
}

// Assign sets or clears the assignee. The cached request shows the change
// immediately; a failed call restores the server-confirmed prior state.
func (c *Client) Assign(ctx context.Context, entityID, id string, assigneeID *string) (models.PQRS, error) {
	current, ok := c.Cache.Get(id)
	if !ok {
		var err error
		if current, err = c.GetPQR(ctx, entityID, id); err != nil {
			return models.PQRS{}, err
		}
	}

	next := current
	next.AssignedToID = assigneeID
	next.AssignedTo = nil
	next.Status = models.StatusPending
	if assigneeID != nil {
		next.Status = models.StatusInProgress
	}

	requestID := "req_" + c.NewID()
	if err := c.Cache.Apply(requestID, id, next); err != nil {
		return models.PQRS{}, err
	}

	var confirmed models.PQRS
	err := c.do(ctx, http.MethodPatch, "/api/pqr/"+id+"/assign", entityID, requestID,
		map[string]any{"assignedToId": assigneeID}, &confirmed)
	if err != nil {
		c.Cache.Rollback(requestID)
		return models.PQRS{}, err
	}
	c.Cache.Confirm(requestID, confirmed)
	return confirmed, nil
}

func (c *Client) Employees(ctx context.Context, entityID string) ([]models.User, error) {
	var items []models.User
	err := c.do(ctx, http.MethodGet, "/api/entities/"+entityID+"/employees", entityID, "", nil, &items)
	return items, err
}

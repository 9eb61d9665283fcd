// Package rest is the client for the console's HTTP API. It only moves
// bytes; retry and error policy belong to the callers.
package rest

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
	"time"

	"github.com/Youssouf13001/creativindustry-chat/internal/models"
)

// Client calls the chat endpoints of the console API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// UploadResult is the server's descriptor for an uploaded attachment.
type UploadResult struct {
	FileURL     string             `json:"file_url"`
	FileName    string             `json:"file_name"`
	MessageType models.PayloadKind `json:"message_type"`
}

// UnreadCount is the team-chat unread counter response.
type UnreadCount struct {
	Count int `json:"count"`
}

// SendRequest is the body of a team-chat send.
type SendRequest struct {
	Content     string             `json:"content"`
	RecipientID string             `json:"recipient_id,omitempty"`
	MessageType models.PayloadKind `json:"message_type"`
	FileURL     string             `json:"file_url,omitempty"`
	FileName    string             `json:"file_name,omitempty"`
}

// NewClient creates a client for the given API origin and session token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Conversations fetches the support-chat conversation summaries.
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	if err := c.getJSON(ctx, "/chat/conversations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages fetches the full ordered log for one support conversation.
func (c *Client) Messages(ctx context.Context, counterpartID string) ([]models.Message, error) {
	var out []models.Message
	if err := c.getJSON(ctx, "/chat/messages/"+url.PathEscape(counterpartID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Upload sends an attachment and returns the server's file descriptor.
func (c *Client) Upload(ctx context.Context, fileName string, r io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TeamMessages fetches the full team-chat log.
func (c *Client) TeamMessages(ctx context.Context) ([]models.Message, error) {
	var out []models.Message
	if err := c.getJSON(ctx, "/team-chat/messages", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TeamUnreadCount fetches the team-chat unread counter.
func (c *Client) TeamUnreadCount(ctx context.Context) (int, error) {
	var out UnreadCount
	if err := c.getJSON(ctx, "/team-chat/unread-count", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// TeamOnlineUsers fetches the current team roster snapshot.
func (c *Client) TeamOnlineUsers(ctx context.Context) ([]models.OnlineUser, error) {
	var out []models.OnlineUser
	if err := c.getJSON(ctx, "/team-chat/online-users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TeamSend posts a team-chat message.
func (c *Client) TeamSend(ctx context.Context, send SendRequest) error {
	return c.postJSON(ctx, "/team-chat/send", send, nil)
}

// TeamMarkRead zeroes the caller's team-chat unread counter.
func (c *Client) TeamMarkRead(ctx context.Context) error {
	return c.postJSON(ctx, "/team-chat/mark-read", nil, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	apperrors "github.com/adminstyler/adminstyler/internal/errors"
	"github.com/adminstyler/adminstyler/internal/security"
)

// Client talks to the styler's HTTP API. It implements both Transport
// and NonceSource, so one Client can back a Coordinator completely.
type Client struct {
	httpClient *http.Client
	baseURL    string
	session    string

	mutex sync.Mutex
	nonce string
}

// NewClient creates a client for the API at baseURL. session is the
// bearer token identifying the principal; initialNonce may be empty,
// in which case the first request fetches one.
func NewClient(httpClient *http.Client, baseURL, session, initialNonce string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		nonce:      initialNonce,
	}
}

// wireResponse mirrors the server's JSON envelope
type wireResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		CSS    string                 `json:"css"`
		Errors []apperrors.FieldError `json:"errors"`
		Nonce  string                 `json:"nonce"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendPreview posts one changed setting to the preview endpoint.
// Security rejections come back as a Response with the code set, so the
// coordinator can decide between refresh-and-retry and giving up.
func (c *Client) SendPreview(ctx context.Context, nonce, key, value string) (*Response, error) {
	body, err := json.Marshal(map[string]any{
		"nonce":    nonce,
		"settings": map[string]string{key: value},
	})
	if err != nil {
		return nil, err
	}

	out, err := c.post(ctx, "/api/preview-css", body)
	if err != nil {
		return nil, err
	}

	if !out.Success {
		if out.Error != nil {
			code := apperrors.SecurityCode(out.Error.Code)
			if code == apperrors.CodeNonce || code == apperrors.CodeCapability {
				return &Response{SecurityCode: code}, nil
			}
			return nil, &apperrors.TransportError{
				Op:  "preview",
				Err: fmt.Errorf("%s: %s", out.Error.Code, out.Error.Message),
			}
		}
		return nil, &apperrors.TransportError{Op: "preview", Err: fmt.Errorf("request failed")}
	}

	resp := &Response{}
	if out.Data != nil {
		resp.CSS = out.Data.CSS
		resp.Errors = out.Data.Errors
	}
	return resp, nil
}

// Nonce returns the cached nonce, fetching one if none is held yet
func (c *Client) Nonce(ctx context.Context) (string, error) {
	c.mutex.Lock()
	nonce := c.nonce
	c.mutex.Unlock()

	if nonce != "" {
		return nonce, nil
	}
	return c.Refresh(ctx)
}

// Refresh fetches a fresh preview nonce and caches it
func (c *Client) Refresh(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"action": security.ActionPreviewCSS})
	if err != nil {
		return "", err
	}

	out, err := c.post(ctx, "/api/nonce", body)
	if err != nil {
		return "", err
	}
	if !out.Success || out.Data == nil || out.Data.Nonce == "" {
		message := "nonce refresh rejected"
		if out.Error != nil {
			message = out.Error.Message
		}
		return "", fmt.Errorf("refreshing nonce: %s", message)
	}

	c.mutex.Lock()
	c.nonce = out.Data.Nonce
	c.mutex.Unlock()
	return out.Data.Nonce, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*wireResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.session != "" {
		req.Header.Set("Authorization", "Bearer "+c.session)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.TransportError{Op: "post " + path, Err: err, Retryable: true}
	}
	defer httpResp.Body.Close()

	var out wireResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, &apperrors.TransportError{Op: "decode " + path, Err: err}
	}
	return &out, nil
}

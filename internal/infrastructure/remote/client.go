// Package remote is the HTTP facade of the document-ingestion backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
)

const defaultTimeout = 15 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Transport is the base round tripper. Nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// Client implements ports.RemoteService over HTTP.
type Client struct {
	baseURL string
	anon    *http.Client
	authed  *http.Client
	log     zerolog.Logger

	// stream carries document bytes. It has no overall timeout, so a
	// transfer is bounded by the caller's context only.
	stream *http.Client
}

var _ ports.RemoteService = (*Client)(nil)

// NewClient returns a Client. tokens supplies the bearer credential of every
// authenticated call at request time; it is normally the session.
func NewClient(cfg Config, tokens oauth2.TokenSource, log zerolog.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "http://localhost:8000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	bearer := &oauth2.Transport{Source: tokens, Base: transport}
	return &Client{
		baseURL: base,
		anon:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		authed:  &http.Client{Transport: bearer, Timeout: cfg.Timeout},
		stream:  &http.Client{Transport: bearer},
		log:     log.With().Str("component", "remote").Logger(),
	}
}

// tokenResponse is the body of a successful /token exchange.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Authenticate runs the password grant against /token. A 2xx answer
// without an access token is reported as ErrNoAccessToken.
func (c *Client) Authenticate(ctx context.Context, creds domain.Credentials) (*domain.Token, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {creds.Username},
		"password":   {creds.Password},
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var raw tokenResponse
	if err := c.send(c.anon, req, &raw); err != nil {
		var herr *HTTPError
		if errors.As(err, &herr) {
			switch herr.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized:
				return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, herr.Detail)
			}
			return nil, herr
		}
		return nil, fmt.Errorf("token request: %w", err)
	}
	if raw.AccessToken == "" {
		return nil, domain.ErrNoAccessToken
	}

	out := &domain.Token{
		AccessToken: raw.AccessToken,
		TokenType:   raw.TokenType,
	}
	if raw.ExpiresIn > 0 {
		out.Expiry = time.Now().Add(time.Duration(raw.ExpiresIn) * time.Second)
	} else if exp, ok := domain.TokenExpiry(raw.AccessToken); ok {
		out.Expiry = exp
	}
	return out, nil
}

// FetchIdentity calls /users/me/ with an explicit token instead of the
// session's, so it can validate a credential before it is adopted.
func (c *Client) FetchIdentity(ctx context.Context, accessToken string) (*domain.Identity, error) {
	var out domain.Identity
	err := c.do(ctx, c.anon, http.MethodGet, "/users/me/", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+accessToken)
	}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchDocuments(ctx context.Context) ([]domain.Document, error) {
	var out []domain.Document
	if err := c.doJSON(ctx, http.MethodGet, "/documents/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchStatusMap(ctx context.Context) (domain.StatusMap, error) {
	out := domain.StatusMap{}
	if err := c.doJSON(ctx, http.MethodGet, "/ingestion/status", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Signup creates an account. It needs no credential.
func (c *Client) Signup(ctx context.Context, in ports.SignupInput) (*domain.User, error) {
	body := map[string]string{
		"username": in.Username,
		"email":    in.Email,
		"password": in.Password,
	}
	var out domain.User
	if err := c.do(ctx, c.anon, http.MethodPost, "/users/", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDocument streams body as the "file" part of a multipart form.
func (c *Client) UploadDocument(ctx context.Context, filename string, body io.Reader) (*domain.Document, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/documents/", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out domain.Document
	if err := c.send(c.stream, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id domain.EntityID) error {
	return c.doJSON(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id.String()), nil, nil)
}

func (c *Client) TriggerIngestion(ctx context.Context, id domain.EntityID) error {
	return c.doJSON(ctx, http.MethodPost, "/ingest/"+url.PathEscape(id.String()), struct{}{}, nil)
}

func (c *Client) DownloadDocument(ctx context.Context, id domain.EntityID) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/documents/"+url.PathEscape(id.String())+"/download", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFrom(resp)
	}
	return resp.Body, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	if err := c.doJSON(ctx, http.MethodGet, "/users/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateUserRole(ctx context.Context, id domain.EntityID, role domain.Role) (*domain.User, error) {
	var out domain.User
	body := map[string]domain.Role{"role": role}
	if err := c.doJSON(ctx, http.MethodPut, "/users/"+url.PathEscape(id.String())+"/role", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id domain.EntityID) error {
	return c.doJSON(ctx, http.MethodDelete, "/users/"+url.PathEscape(id.String()), nil, nil)
}

func (c *Client) Ask(ctx context.Context, question string) (*domain.QAAnswer, error) {
	var out domain.QAAnswer
	if err := c.doJSON(ctx, http.MethodPost, "/qa", map[string]string{"question": question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping reports whether the backend answers at all. Any response below 500
// counts as up; readiness does not need a credential.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	resp, err := c.anon.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return &HTTPError{StatusCode: resp.StatusCode}
	}
	return nil
}

// doJSON sends an authenticated JSON request.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, c.authed, method, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, decorate func(*http.Request), body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if decorate != nil {
		decorate(req)
	}
	return c.send(hc, req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID(ctx))
	return req, nil
}

func (c *Client) send(hc *http.Client, req *http.Request, out any) error {
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("backend request failed")
		return err
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFrom(resp)
	}
	if out == nil {
		return nil
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", req.URL.Path, err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func errorFrom(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &HTTPError{StatusCode: resp.StatusCode, Detail: parseDetail(payload)}
}

type requestIDKey struct{}

// WithRequestID makes every backend call issued with ctx carry id as its
// X-Request-ID, so console and backend logs line up.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return uuid.NewString()
}

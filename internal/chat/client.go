package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultRequestTimeout = 15 * time.Second

// Client talks to the chat REST API on behalf of a session. It implements
// both MessageStore and RoomBackend.
type Client struct {
	session *Session
	http    *http.Client
	log     zerolog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func WithClientLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

func NewClient(session *Session, opts ...ClientOption) *Client {
	c := &Client{
		session: session,
		http:    &http.Client{Timeout: defaultRequestTimeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("module", "chat.client").Logger()
	return c
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type apiError struct {
	Error string `json:"error"`
}

// Login exchanges credentials for a new Session.
func Login(ctx context.Context, hc *http.Client, baseURL, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var out authResponse
	if err := postAnonymous(ctx, hc, baseURL, "/auth/login", "login", body, &out); err != nil {
		return nil, err
	}
	return NewSession(baseURL, out.Token, out.User), nil
}

// Register creates an account and returns a Session for it.
func Register(ctx context.Context, hc *http.Client, baseURL, name, email, password string) (*Session, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	var out authResponse
	if err := postAnonymous(ctx, hc, baseURL, "/auth/register", "register", body, &out); err != nil {
		return nil, err
	}
	return NewSession(baseURL, out.Token, out.User), nil
}

func postAnonymous(ctx context.Context, hc *http.Client, baseURL, path, op string, body, out any) error {
	if hc == nil {
		hc = &http.Client{Timeout: defaultRequestTimeout}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	return decodeResponse(op, resp, out)
}

// Me returns the user behind the session token.
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/auth/me", "get current user", nil, "", &u)
	return u, err
}

// Logout revokes the token on the server and closes the session.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", "logout", nil, "", nil)
	c.session.Close()
	return err
}

func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	err := c.do(ctx, http.MethodGet, "/chat/rooms", "list rooms", nil, "", &rooms)
	return rooms, err
}

func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var room Room
	if err := c.do(ctx, http.MethodPost, "/chat/rooms", "create room", bytes.NewReader(body), "application/json", &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := c.do(ctx, http.MethodGet, "/chat/users", "list users", nil, "", &users)
	return users, err
}

func (c *Client) AddMember(ctx context.Context, roomID, userID uuid.UUID) (*Room, error) {
	body, err := json.Marshal(map[string]uuid.UUID{"userId": userID})
	if err != nil {
		return nil, err
	}
	var room Room
	path := fmt.Sprintf("/chat/rooms/%s/members", roomID)
	if err := c.do(ctx, http.MethodPost, path, "add member", bytes.NewReader(body), "application/json", &room); err != nil {
		return nil, inRoom(err, roomID, "")
	}
	return &room, nil
}

func (c *Client) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error {
	path := fmt.Sprintf("/chat/rooms/%s/members/%s", roomID, userID)
	return inRoom(c.do(ctx, http.MethodDelete, path, "remove member", nil, "", nil), roomID, "")
}

// FetchMessages returns the room tail, newest first, as the server sends it.
func (c *Client) FetchMessages(ctx context.Context, roomID uuid.UUID) ([]Message, error) {
	var msgs []Message
	path := fmt.Sprintf("/chat/rooms/%s/messages", roomID)
	err := c.do(ctx, http.MethodGet, path, "fetch messages", nil, "", &msgs)
	return msgs, inRoom(err, roomID, "read")
}

// PostMessage sends JSON for plain text and multipart when an upload is attached.
func (c *Client) PostMessage(ctx context.Context, roomID uuid.UUID, content string, upload *Upload) (*Message, error) {
	path := fmt.Sprintf("/chat/rooms/%s/messages", roomID)

	var (
		body        io.Reader
		contentType string
	)
	if upload == nil {
		payload, err := json.Marshal(map[string]string{"content": content})
		if err != nil {
			return nil, err
		}
		body, contentType = bytes.NewReader(payload), "application/json"
	} else {
		buf, ct, err := encodeMultipart(content, upload)
		if err != nil {
			return nil, &TransportError{Op: "post message", Err: err}
		}
		body, contentType = buf, ct
	}

	var msg Message
	if err := c.do(ctx, http.MethodPost, path, "post message", body, contentType, &msg); err != nil {
		return nil, inRoom(err, roomID, "write")
	}
	return &msg, nil
}

// inRoom fills in the room and action of a 403 from a room endpoint.
func inRoom(err error, roomID uuid.UUID, action string) error {
	var ae *AuthorizationError
	if errors.As(err, &ae) {
		ae.RoomID = roomID
		if action != "" {
			ae.Action = action
		}
	}
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMultipart(content string, upload *Upload) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if err := w.WriteField("content", content); err != nil {
		return nil, "", err
	}

	name := upload.Name
	if name == "" {
		name = "attachment"
	}
	ct := upload.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachment"; filename="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if upload.Body != nil {
		if _, err := io.Copy(part, upload.Body); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func (c *Client) do(ctx context.Context, method, path, op string, body io.Reader, contentType string, out any) error {
	token, err := c.session.Token()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.session.BaseURL()+path, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api request")
	err = decodeResponse(op, resp, out)
	var te *TransportError
	if errors.As(err, &te) && te.Status == http.StatusForbidden {
		return &AuthorizationError{UserID: c.session.User().ID, Action: op}
	}
	return err
}

func decodeResponse(op string, resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		msg := http.StatusText(resp.StatusCode)
		if raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
			if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
				msg = apiErr.Error
			}
		}
		return &TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

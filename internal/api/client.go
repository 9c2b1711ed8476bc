package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"

	"pdfchat/internal/model"
	"pdfchat/internal/pdfchat"
)

// Client maps the backend's endpoints onto pdfchat.Backend.
type Client struct {
	gw *Gateway
}

var _ pdfchat.Backend = (*Client)(nil)

func NewClient(gw *Gateway) *Client {
	return &Client{gw: gw}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Signup(ctx context.Context, email, password string) (map[string]any, error) {
	var out map[string]any
	if err := c.gw.DoJSON(ctx, http.MethodPost, "/auth/signup", credentialsRequest{email, password}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.gw.DoJSON(ctx, http.MethodPost, "/auth/login", credentialsRequest{email, password}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("login response has no token")
	}
	return out.Token, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.gw.Do(ctx, http.MethodPost, "/auth/logout", nil, "", nil)
}

func (c *Client) Me(ctx context.Context) (*model.Identity, error) {
	var out struct {
		Firebase model.Identity `json:"firebase"`
	}
	if err := c.gw.DoJSON(ctx, http.MethodGet, "/user/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.Firebase, nil
}

// Upload streams r as the "file" part of a multipart form.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*model.Document, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeFilePart(form, filename, r))
	}()

	var doc model.Document
	err := c.gw.Do(ctx, http.MethodPost, "/pdf/upload", pr, form.FormDataContentType(), &doc)
	pr.Close()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func writeFilePart(form *multipart.Writer, filename string, r io.Reader) error {
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", contentType)

	part, err := form.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}
	return form.Close()
}

func (c *Client) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var out struct {
		Files []model.Document `json:"files"`
	}
	if err := c.gw.DoJSON(ctx, http.MethodGet, "/pdf/list", nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// Query sends file_id and query as multipart form fields.
func (c *Client) Query(ctx context.Context, fileID, query string) (string, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		err := form.WriteField("file_id", fileID)
		if err == nil {
			err = form.WriteField("query", query)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	var out struct {
		Response string `json:"response"`
	}
	err := c.gw.Do(ctx, http.MethodPost, "/pdf/query", pr, form.FormDataContentType(), &out)
	pr.Close()
	if err != nil {
		return "", err
	}
	return out.Response, nil
}

func (c *Client) History(ctx context.Context, fileID string) ([]model.ConversationRecord, error) {
	var out struct {
		Conversations []model.ConversationRecord `json:"conversations"`
	}
	if err := c.gw.DoJSON(ctx, http.MethodGet, "/pdf/history/"+url.PathEscape(fileID), nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *Client) DeleteDocument(ctx context.Context, fileID string) error {
	return c.gw.Do(ctx, http.MethodDelete, "/pdf/"+url.PathEscape(fileID), nil, "", nil)
}

func (c *Client) NewConversation(ctx context.Context, fileID string) error {
	return c.gw.Do(ctx, http.MethodPost, "/pdf/new-conversation/"+url.PathEscape(fileID), nil, "", nil)
}

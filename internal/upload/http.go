// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/chatdeck/internal/logging"
	"github.com/jeranaias/chatdeck/internal/model"
)

// Uploader stores a file and returns its attachment descriptor.
type Uploader interface {
	Upload(ctx context.Context, f File) (model.Attachment, error)
}

// maxResponseSize bounds the upload endpoint's reply.
const maxResponseSize = 1 << 20

// Error is a non-2xx answer from the upload endpoint.
type Error struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// HTTPUploader posts files as multipart form field "file".
type HTTPUploader struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

// NewHTTPUploader returns an uploader for endpoint.
func NewHTTPUploader(endpoint string, client *http.Client, log *zap.Logger) *HTTPUploader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPUploader{endpoint: endpoint, client: client, log: logging.OrNop(log).Named("upload")}
}

type uploadResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Upload implements Uploader.
func (u *HTTPUploader) Upload(ctx context.Context, f File) (model.Attachment, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	h.Set("Content-Type", f.Type)
	part, err := w.CreatePart(h)
	if err != nil {
		return model.Attachment{}, err
	}
	if _, err := part.Write(f.Data); err != nil {
		return model.Attachment{}, err
	}
	if err := w.Close(); err != nil {
		return model.Attachment{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := u.client.Do(req)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("upload %s: %w", f.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return model.Attachment{}, fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Attachment{}, &Error{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}

	var out uploadResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return model.Attachment{}, fmt.Errorf("decode upload response: %w", err)
	}
	if out.ID == "" || out.URL == "" {
		return model.Attachment{}, fmt.Errorf("upload response for %s is missing id or url", f.Name)
	}

	u.log.Debug("file uploaded",
		zap.String("name", f.Name),
		zap.Int64("size", f.Size),
		zap.Duration("elapsed", time.Since(start)))

	return model.Attachment{ID: out.ID, Name: out.Name, Type: out.Type, URL: out.URL, Size: out.Size}, nil
}

// errorMessage prefers the body's "error" then "message" field.
func errorMessage(status int, body []byte) string {
	var eb struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &eb) == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	return fmt.Sprintf("Upload failed: %d %s", status, http.StatusText(status))
}

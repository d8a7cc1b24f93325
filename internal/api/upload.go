package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"kaspas-storefront/internal/httpclient"
)

type FormFile struct {
	Field   string
	Name    string
	Content io.Reader
}

// Form is a multipart body: plain fields plus file parts.
type Form struct {
	Fields map[string]string
	Files  []FormFile
}

// Upload sends form as multipart/form-data. onProgress, when set, receives
// body bytes written against the total.
func (s *Service) Upload(ctx context.Context, url string, form *Form, onProgress httpclient.ProgressFunc, opts ...Option) (*httpclient.Response, error) {
	body, contentType, err := encodeForm(form)
	if err != nil {
		return nil, err
	}

	req := &httpclient.Request{
		Method:           http.MethodPost,
		URL:              url,
		Data:             body,
		OnUploadProgress: onProgress,
	}
	for _, opt := range opts {
		opt(req)
	}
	if req.Headers == nil {
		req.Headers = make(http.Header)
	}
	req.Headers.Set("Content-Type", contentType)

	return s.client.Do(ctx, req)
}

func encodeForm(form *Form) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if form != nil {
		for name, value := range form.Fields {
			if err := w.WriteField(name, value); err != nil {
				return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
			}
		}
		for _, f := range form.Files {
			part, err := w.CreateFormFile(f.Field, f.Name)
			if err != nil {
				return nil, "", fmt.Errorf("failed to create file part %s: %w", f.Field, err)
			}
			if f.Content != nil {
				if _, err := io.Copy(part, f.Content); err != nil {
					return nil, "", fmt.Errorf("failed to write file %s: %w", f.Name, err)
				}
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/dientoan/secom-client/pkg/models"
	"github.com/sirupsen/logrus"
)

// UploadFile posts a file to /file/upload as multipart form data and returns
// the stored file reference.
func (c *Client) UploadFile(ctx context.Context, name, mimeType string, r io.Reader) (*models.UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart body: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to buffer upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/file/upload", nil, buf.Bytes(), w.FormDataContentType(), true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result models.UploadResult
	if err := c.decode(resp, &result); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"file_id": result.ID,
		"name":    name,
	}).Info("File uploaded")
	return &result, nil
}

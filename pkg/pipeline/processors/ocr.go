package processors

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// DefaultHTTPClient is shared by OCR clients that are not handed one
var DefaultHTTPClient = sync.OnceValue(func() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
})

// OCRClient extracts text through a remote OCR service. It posts the
// document to the service's /extract endpoint and reads the text out
// of the JSON response.
type OCRClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewOCRClient creates a client for the OCR service at baseURL.
// client may be nil to use the shared default.
func NewOCRClient(baseURL string, client *http.Client) *OCRClient {
	if client == nil {
		client = DefaultHTTPClient()
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &OCRClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Extract uploads the document and returns the recognised text
func (c *OCRClient) Extract(ctx context.Context, content []byte, progress PageFunc) (string, error) {
	if progress != nil {
		progress(0, 1)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "document.pdf")
	if err != nil {
		return "", errors.Wrap(err, "build ocr request")
	}
	if _, err := part.Write(content); err != nil {
		return "", errors.Wrap(err, "build ocr request")
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "build ocr request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &body)
	if err != nil {
		return "", errors.Wrap(err, "build ocr request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "call ocr service")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read ocr response")
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(payload, "error").String()
		if msg == "" {
			msg = resp.Status
		}
		return "", errors.Errorf("ocr service: %s", msg)
	}

	text := gjson.GetBytes(payload, "text").String()
	pages := gjson.GetBytes(payload, "metadata.totalPages").Int()

	c.logger.WithFields(logrus.Fields{
		"pages":       pages,
		"text_length": len(text),
	}).Info("OCR extraction completed")

	if progress != nil {
		progress(1, 1)
	}
	return text, nil
}

// Health probes the service's health endpoint
func (c *OCRClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "build health request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "call ocr service")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read health response")
	}

	if status := gjson.GetBytes(payload, "status").String(); status != "healthy" {
		return errors.Errorf("ocr service unhealthy: %q", status)
	}
	return nil
}

func (c *OCRClient) SupportedTypes() []string {
	return []string{"application/pdf", "image/png", "image/jpeg", "image/tiff"}
}

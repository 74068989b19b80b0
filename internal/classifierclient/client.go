package classifierclient

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
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/example/expression-client/internal/classifier"
	"github.com/example/expression-client/internal/logging"
)

const (
	uploadPath = "/upload"
	fileField  = "file"

	// maxResponseSize bounds how much of a reply is read before decoding.
	maxResponseSize = 1 << 20
)

// Client talks to the classification service over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// New returns a ready-to-use client for the service rooted at baseURL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid service url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid service url %q: scheme must be http or https", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid service url %q: missing host", baseURL)
	}

	return &Client{
		endpoint:   strings.TrimRight(parsed.String(), "/") + uploadPath,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("classifier_client"),
	}, nil
}

// Endpoint returns the full upload URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Classify uploads image and decodes the service reply. Any network error,
// non-2xx status or body that is not valid JSON comes back as a
// *classifier.TransportError. Valid JSON of the wrong shape is returned as a
// response without a label.
func (c *Client) Classify(ctx context.Context, requestID string, image *classifier.Image) (*classifier.Response, error) {
	opLogger := logging.WithOperation(c.logger, "classifier.upload", requestID)

	body, contentType, err := encodeUpload(image)
	if err != nil {
		return nil, classifier.NewTransportError("classifier.encode_upload", requestID, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, classifier.NewTransportError("classifier.build_request", requestID, 0, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := classifier.NewTransportError("classifier.upload", requestID, 0, err)
		opLogger.Error("classification request failed", zap.Error(wrapped))
		return nil, wrapped
	}
	defer resp.Body.Close()

	opLogger.Debug("classification response received",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		wrapped := classifier.NewTransportError("classifier.upload", requestID, resp.StatusCode, classifier.ErrUnexpectedStatus)
		opLogger.Warn("classification service rejected upload", zap.Error(wrapped))
		return nil, wrapped
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		wrapped := classifier.NewTransportError("classifier.read_response", requestID, resp.StatusCode, err)
		opLogger.Warn("failed to read classification response", zap.Error(wrapped))
		return nil, wrapped
	}
	if !json.Valid(data) {
		wrapped := classifier.NewTransportError("classifier.decode_response", requestID, resp.StatusCode, errInvalidJSON)
		opLogger.Warn("classification response is not valid json", zap.Error(wrapped))
		return nil, wrapped
	}
	return decodeResponse(data, opLogger), nil
}

var errInvalidJSON = errors.New("response body is not valid json")

// decodeResponse maps a syntactically valid body onto a Response. A body that
// does not have the expected shape yields a response without a label, keeping
// the service's error message when it is a string.
func decodeResponse(data []byte, logger *zap.Logger) *classifier.Response {
	var decoded classifier.Response
	err := json.Unmarshal(data, &decoded)
	if err == nil {
		return &decoded
	}
	logger.Warn("classification response has unexpected shape", zap.Error(err))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &classifier.Response{}
	}
	var message string
	if raw, ok := fields["error"]; ok {
		_ = json.Unmarshal(raw, &message)
	}
	return &classifier.Response{Error: message}
}

func encodeUpload(image *classifier.Image) (io.Reader, string, error) {
	if image == nil {
		return nil, "", fmt.Errorf("no image to upload")
	}

	filename := image.Filename
	if filename == "" {
		filename = "upload"
	}

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, filename))
	header.Set("Content-Type", mimetype.Detect(image.Data).String())

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", fmt.Errorf("write multipart part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf, writer.FormDataContentType(), nil
}

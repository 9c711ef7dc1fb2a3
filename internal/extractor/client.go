// Package extractor talks to the external embedding service that turns face
// images and voice recordings into embeddings.
package extractor

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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/biogate/biogate/internal/acoustic"
)

const (
	defaultBaseURL = "http://127.0.0.1:5001"
	defaultTimeout = 5 * time.Second

	faceEndpoint  = "/embed"
	voiceEndpoint = "/voice-verify"

	maxResponseBytes = 4 << 20
)

var (
	// ErrExtraction marks every failure of the upstream service: unreachable,
	// timed out, explicit failure flag or a malformed body.
	ErrExtraction = errors.New("extraction failed")
	// ErrMalformedResponse is returned when required output fields are missing.
	ErrMalformedResponse = errors.New("malformed extractor response")
)

// FaceResult is the output of face extraction.
type FaceResult struct {
	Embedding []float64
}

// VoiceResult is the output of voice extraction.
type VoiceResult struct {
	Embedding []float64
	Features  acoustic.Bundle
}

// Client is an HTTP client for the embedding service.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a client. An empty baseURL or non-positive timeout falls back to defaults.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
	}
}

type response struct {
	Success       *bool            `json:"success"`
	Error         string           `json:"error"`
	Embedding     []float64        `json:"embedding"`
	VoiceFeatures *acoustic.Bundle `json:"voice_features"`
}

// ExtractFace posts the image at path and returns its face embedding.
func (c *Client) ExtractFace(ctx context.Context, path string) (FaceResult, error) {
	resp, err := c.post(ctx, faceEndpoint, "image", "", path)
	if err != nil {
		return FaceResult{}, err
	}
	if len(resp.Embedding) == 0 {
		return FaceResult{}, fmt.Errorf("%w: %w: embedding missing", ErrExtraction, ErrMalformedResponse)
	}
	return FaceResult{Embedding: resp.Embedding}, nil
}

// ExtractVoice posts the recording at path and returns its voice embedding and acoustic statistics.
func (c *Client) ExtractVoice(ctx context.Context, path string) (VoiceResult, error) {
	resp, err := c.post(ctx, voiceEndpoint, "audio", "audio/wav", path)
	if err != nil {
		return VoiceResult{}, err
	}
	if len(resp.Embedding) == 0 {
		return VoiceResult{}, fmt.Errorf("%w: %w: embedding missing", ErrExtraction, ErrMalformedResponse)
	}
	if resp.VoiceFeatures == nil || resp.VoiceFeatures.Empty() {
		return VoiceResult{}, fmt.Errorf("%w: %w: voice_features missing", ErrExtraction, ErrMalformedResponse)
	}
	return VoiceResult{Embedding: resp.Embedding, Features: *resp.VoiceFeatures}, nil
}

func (c *Client) post(ctx context.Context, endpoint, field, contentType, path string) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, formType, err := multipartFile(field, contentType, path)
	if err != nil {
		return response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", formType)
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%w: request: %w", ErrExtraction, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return response{}, fmt.Errorf("%w: read response: %w", ErrExtraction, err)
	}

	var out response
	decodeErr := json.Unmarshal(raw, &out)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return response{}, fmt.Errorf("%w: status %d: %s", ErrExtraction, httpResp.StatusCode, msg)
	}
	if decodeErr != nil {
		return response{}, fmt.Errorf("%w: %w: %w", ErrExtraction, ErrMalformedResponse, decodeErr)
	}
	if out.Success != nil && !*out.Success {
		msg := out.Error
		if msg == "" {
			msg = "service reported failure"
		}
		return response{}, fmt.Errorf("%w: %s", ErrExtraction, msg)
	}
	return out, nil
}

func multipartFile(field, contentType, path string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open sample: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	var part io.Writer
	if contentType != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(path)))
		h.Set("Content-Type", contentType)
		part, err = writer.CreatePart(h)
	} else {
		part, err = writer.CreateFormFile(field, filepath.Base(path))
	}
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("write sample: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

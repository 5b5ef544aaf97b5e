package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

var (
	ErrBadStatus       = errors.New("analysis service returned bad status")
	ErrMalformedResult = errors.New("analysis service returned malformed result")
)

// Result - ответ классификатора изображений
type Result struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// Client ходит во внешний сервис анализа изображений
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Analyze отправляет изображение полем file в POST {baseURL}/predict
func (c *Client) Analyze(ctx context.Context, filename string, image io.Reader) (Result, error) {
	var body bytes.Buffer

	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}

	if _, err = io.Copy(part, image); err != nil {
		return Result{}, fmt.Errorf("copy image: %w", err)
	}

	if err = form.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", &body)
	if err != nil {
		return Result{}, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("send predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("%w: %d %s", ErrBadStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result Result
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}

	if result.Prediction == "" || result.Confidence < 0 || result.Confidence > 1 {
		return Result{}, fmt.Errorf("%w: %+v", ErrMalformedResult, result)
	}

	return result, nil
}

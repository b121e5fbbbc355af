package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/devHaitham481/A-Team/internal/models"
)

const defaultBackoff = time.Second

// Options configures a Client.
type Options struct {
	URL     string
	Model   string
	APIKey  string
	RPM     int
	Retries int
	Timeout time.Duration
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff    time.Duration
	HTTPClient *http.Client
}

// Client talks to an ElevenLabs-compatible speech-to-text endpoint. A Client
// is safe for concurrent use; all calls share one rate limiter.
type Client struct {
	httpClient *http.Client
	url        string
	model      string
	apiKey     string
	limiter    *rate.Limiter
	retries    int
	backoff    time.Duration
	timeout    time.Duration
	logger     *slog.Logger
}

// response mirrors the vendor JSON.
type response struct {
	LanguageCode string        `json:"language_code"`
	Text         string        `json:"text"`
	Words        []models.Word `json:"words"`
}

func New(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if opts.RPM > 0 {
		// tokens per second = RPM / 60
		limit = rate.Limit(float64(opts.RPM) / 60.0)
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		httpClient: opts.HTTPClient,
		url:        opts.URL,
		model:      opts.Model,
		apiKey:     opts.APIKey,
		limiter:    rate.NewLimiter(limit, 1),
		retries:    max(opts.Retries, 0),
		backoff:    opts.Backoff,
		timeout:    opts.Timeout,
		logger:     logger,
	}
}

// Transcribe uploads the audio file and returns its spoken words in order.
// Spacing, audio-event and blank tokens are dropped. Transport failures are
// retried with exponential backoff; HTTP error statuses are returned as a
// *models.TranscriptionError without retrying.
func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]models.Word, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, fmt.Errorf("%w: no API key configured", models.ErrInvalidCredential)
	}

	body, contentType, err := c.buildForm(audioPath)
	if err != nil {
		return nil, &models.TranscriptionError{Detail: "prepare upload", Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff << uint(attempt-1)
			c.logger.Warn("transcription request failed, retrying",
				"attempt", attempt,
				"backoff", backoff,
				"err", lastErr)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, c.contextError(ctx)
			case <-timer.C:
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.contextError(ctx)
		}

		words, err := c.do(ctx, body, contentType)
		if err == nil {
			return words, nil
		}

		var te *models.TranscriptionError
		if errors.As(err, &te) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, c.contextError(ctx)
		}
		lastErr = err
	}

	return nil, &models.TranscriptionError{
		Detail: fmt.Sprintf("request failed after %d attempts", c.retries+1),
		Err:    lastErr,
	}
}

// do performs one request. Transport errors are returned bare so the caller
// can retry them; everything else is a *models.TranscriptionError.
func (c *Client) do(ctx context.Context, body []byte, contentType string) ([]models.Word, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &models.TranscriptionError{Detail: "create request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &models.TranscriptionError{
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(respBody)),
		}
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &models.TranscriptionError{Detail: "decode response", Err: err}
	}

	words := spokenWords(decoded.Words)
	c.logger.Debug("transcription received",
		"language", decoded.LanguageCode,
		"tokens", len(decoded.Words),
		"words", len(words),
		"elapsed", time.Since(start))
	return words, nil
}

func (c *Client) buildForm(audioPath string) ([]byte, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("model_id", c.model); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(audioPath)))
	h.Set("Content-Type", "audio/wav")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func (c *Client) contextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.TranscriptionError{Detail: "request timed out", Err: err}
	}
	return &models.TranscriptionError{Detail: "request cancelled", Err: err}
}

// spokenWords keeps word tokens with visible text.
func spokenWords(tokens []models.Word) []models.Word {
	words := make([]models.Word, 0, len(tokens))
	for _, t := range tokens {
		switch t.Type {
		case "spacing", "audio_event":
			continue
		}
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		words = append(words, t)
	}
	return words
}

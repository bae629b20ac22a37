package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// HTTPClient talks to a chat endpoint that answers with an event stream.
type HTTPClient struct {
	url        string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the endpoint at url. A zero timeout
// leaves streaming reads unbounded; cancellation comes from the context.
func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StreamChat posts req and delivers stream events to callback.
func (c *HTTPClient) StreamChat(ctx context.Context, req *domain.ChatRequest, callback StreamCallback) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		return parseSSE(ctx, resp.Body, callback)
	}
	return readText(ctx, resp.Body, callback)
}

// errorMessage extracts {error} from a failure body, falling back to the raw text.
func errorMessage(body []byte) string {
	var errResp domain.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if errResp.Details != "" {
			return errResp.Error + " (" + errResp.Details + ")"
		}
		return errResp.Error
	}
	return strings.TrimSpace(string(body))
}

// parseSSE reads `data:` lines. Each payload is a StreamEvent; [DONE] ends
// the stream.
func parseSSE(ctx context.Context, r io.Reader, callback StreamCallback) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	flush := func() (bool, error) {
		if data.Len() == 0 {
			return false, nil
		}
		payload := data.String()
		data.Reset()
		if payload == "[DONE]" {
			return true, nil
		}
		var event domain.StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			// Skip malformed events
			return false, nil
		}
		if event.Type == domain.StreamEventError {
			return true, &StreamError{Text: event.ErrorText}
		}
		return false, callback(&event)
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()

		if line == "" {
			done, err := flush()
			if err != nil || done {
				return err
			}
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		chunk := strings.TrimPrefix(line, "data:")
		chunk = strings.TrimPrefix(chunk, " ")
		if data.Len() > 0 {
			data.WriteByte('\n')
		}
		data.WriteString(chunk)
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to read stream: %w", err)
	}
	_, err := flush()
	return err
}

// readText treats every read from a plain text body as one fragment.
func readText(ctx context.Context, r io.Reader, callback StreamCallback) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			event := &domain.StreamEvent{Type: domain.StreamEventTextDelta, Delta: string(buf[:n])}
			if cbErr := callback(event); cbErr != nil {
				return cbErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}
	}
}

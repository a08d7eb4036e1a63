package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// doneMarker terminates an OpenAI-compatible event stream.
const doneMarker = "[DONE]"

// ChatCompletionsStream executes a streaming chat/completions request and
// calls handler for every event until [DONE], EOF or ctx is cancelled.
func (c *Client) ChatCompletionsStream(ctx context.Context, req *ChatRequest, handler StreamHandler) (*StreamSummary, error) {
	if handler == nil {
		return nil, errors.New("stream handler is required")
	}
	if req == nil {
		return nil, errors.New("chat request is required")
	}

	req.Stream = true
	if req.StreamOptions == nil {
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	events := newSSEReader(resp.Body)
	summary := &StreamSummary{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := events.Next()
		switch {
		case errors.Is(err, io.EOF):
			return summary, nil
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			return nil, fmt.Errorf("read stream event: %w", err)
		case data == doneMarker:
			return summary, nil
		}

		var event StreamResponse
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, fmt.Errorf("parse stream response: %w", err)
		}
		if event.Error != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: event.Error.Message}
		}
		summary.observe(event)
		if err := handler(event); err != nil {
			return nil, err
		}
	}
}

// observe records stream metadata from event.
func (s *StreamSummary) observe(event StreamResponse) {
	if s.ID == "" {
		s.ID = event.ID
	}
	if s.Model == "" {
		s.Model = event.Model
	}
	if event.Usage != nil {
		s.Usage = *event.Usage
		s.HasUsage = true
	}
}

// sseReader splits a server-sent event stream into data payloads.
type sseReader struct {
	reader *bufio.Reader
	data   []string
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReader(r)}
}

// Next returns the next non-empty data payload. Multi-line data fields are
// joined with "\n"; comments and other fields are skipped. A final event
// without a trailing blank line is still returned before io.EOF.
func (r *sseReader) Next() (string, error) {
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			r.data = append(r.data, strings.TrimSpace(payload))
		}
		if line == "" || errors.Is(err, io.EOF) {
			if event := r.flush(); event != "" {
				return event, nil
			}
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
		}
	}
}

// flush returns the buffered event and resets the buffer.
func (r *sseReader) flush() string {
	event := strings.Join(r.data, "\n")
	r.data = r.data[:0]
	return event
}

package runtime

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/lorekit/lorekit/internal/core/ports/driven"
	"github.com/lorekit/lorekit/internal/logger"
)

// Streaming generation lines can carry large context blocks; size the
// scanner buffer well above the typical line length.
const maxStreamLineBytes = 1 << 20

// generateLine is one newline-delimited JSON object from /api/generate.
type generateLine struct {
	Response string `json:"response"`
	Status   string `json:"status"`
	Error    string `json:"error"`
	Done     bool   `json:"done"`
}

// decodeGenerateStream reads newline-delimited JSON from body and emits
// tagged events on out until the stream ends or done is cancelled. The
// body is always closed and out is always closed; malformed lines are
// logged and skipped.
func decodeGenerateStream(body io.ReadCloser, out chan<- driven.StreamEvent, done <-chan struct{}) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		event, ok := decodeGenerateLine(line)
		if !ok {
			logger.Debug("Skipping malformed stream line: %.80s", line)
			continue
		}

		select {
		case out <- event:
		case <-done:
			return
		}

		if event.Done {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case out <- driven.StreamEvent{Kind: driven.EventError, Err: err}:
		case <-done:
		}
	}
}

// decodeGenerateLine maps one JSON line to a tagged event. Returns
// ok=false for lines that are not valid JSON objects.
func decodeGenerateLine(line []byte) (driven.StreamEvent, bool) {
	var decoded generateLine
	if err := json.Unmarshal(line, &decoded); err != nil {
		return driven.StreamEvent{}, false
	}

	switch {
	case decoded.Error != "":
		return driven.StreamEvent{
			Kind: driven.EventError,
			Err:  errors.New(decoded.Error),
			Done: decoded.Done,
		}, true
	case decoded.Response != "" || decoded.Done:
		return driven.StreamEvent{
			Kind: driven.EventPartialOutput,
			Text: decoded.Response,
			Done: decoded.Done,
		}, true
	case decoded.Status != "":
		return driven.StreamEvent{
			Kind: driven.EventStatus,
			Text: decoded.Status,
		}, true
	default:
		// Valid JSON carrying no field we understand. Surface rather
		// than drop so callers can count them.
		return driven.StreamEvent{Kind: driven.EventUnknown}, true
	}
}

// pullLine is one newline-delimited JSON object from /api/pull.
type pullLine struct {
	Status    string `json:"status"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Error     string `json:"error"`
}

// decodePullStream reads newline-delimited JSON from body and emits
// progress steps on out until the stream ends or done is cancelled.
func decodePullStream(body io.ReadCloser, out chan<- driven.Progress, done <-chan struct{}) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var decoded pullLine
		if err := json.Unmarshal(line, &decoded); err != nil {
			logger.Debug("Skipping malformed pull line: %.80s", line)
			continue
		}

		progress := driven.Progress{Status: decoded.Status}
		if decoded.Error != "" {
			progress.Status = decoded.Error
		}
		if decoded.Total > 0 {
			progress.Fraction = float64(decoded.Completed) / float64(decoded.Total)
		} else {
			progress.Indeterminate = true
		}

		select {
		case out <- progress:
		case <-done:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("Model pull stream ended with error: %v", err)
	}
}

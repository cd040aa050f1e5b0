package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Decoding failures. Each is wrapped with detail by DecodeResponse.
var (
	ErrNoOutput      = errors.New("agent produced no output on stdout")
	ErrMalformed     = errors.New("agent output is not valid JSON")
	ErrMissingStatus = errors.New("response missing required field: status")
)

// EncodeRequest writes req to w as one newline-terminated JSON document.
func EncodeRequest(w io.Writer, req *Request) error {
	if req.Protocol != Version {
		return fmt.Errorf("unsupported protocol version: %d", req.Protocol)
	}
	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if _, err := w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// DecodeResponse reads all of r and decodes one Response from it. The raw
// bytes are returned even on failure so callers can log what the agent said.
func DecodeResponse(r io.Reader) (*Response, []byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, raw, ErrNoOutput
	}

	var resp Response
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, raw, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	resp.Status = strings.TrimSpace(resp.Status)
	if resp.Status == "" {
		return nil, raw, ErrMissingStatus
	}
	return &resp, raw, nil
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMissingField is wrapped by Decode when a required envelope field is absent.
var ErrMissingField = errors.New("missing required field")

// envelopeHead holds the required fields as pointers so absent fields can
// be told apart from empty ones.
type envelopeHead struct {
	Status  *string `json:"status"`
	Version *string `json:"version"`
}

// Decode parses a JSON envelope and checks that subsonic-response, status
// and version are present.
func Decode(r io.Reader) (*Response, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	return DecodeBytes(body)
}

// DecodeBytes is Decode for an in-memory body.
func DecodeBytes(body []byte) (*Response, error) {
	var outer struct {
		Response json.RawMessage `json:"subsonic-response"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(outer.Response) == 0 || string(outer.Response) == "null" {
		return nil, fmt.Errorf("%w: subsonic-response", ErrMissingField)
	}

	var head envelopeHead
	if err := json.Unmarshal(outer.Response, &head); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch {
	case head.Status == nil:
		return nil, fmt.Errorf("%w: status", ErrMissingField)
	case head.Version == nil:
		return nil, fmt.Errorf("%w: version", ErrMissingField)
	}

	var resp Response
	if err := json.Unmarshal(outer.Response, &resp); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if resp.OpenSubsonicExtensions == nil {
		resp.OpenSubsonicExtensions = []Extension{}
	}
	resp.Raw = outer.Response
	return &resp, nil
}

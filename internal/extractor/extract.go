// Package extractor pulls a JSON object out of free-form model text.
package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const fence = "```"

var (
	ErrEmpty             = errors.New("empty model output")
	ErrUnterminatedFence = errors.New("unterminated code fence")
	ErrNotObject         = errors.New("model output is not a JSON object")
)

// StripFence returns the body of the first fenced block in s, dropping an
// optional language annotation after the opening fence ("```json"). Text
// without a fence is returned trimmed.
func StripFence(s string) (string, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	if s == "" {
		return "", ErrEmpty
	}

	open := strings.Index(s, fence)
	if open == -1 {
		return s, nil
	}
	body := s[open+len(fence):]

	// language annotation: letters up to the first whitespace or brace
	i := 0
	for i < len(body) && isTagByte(body[i]) {
		i++
	}
	body = body[i:]

	end := strings.Index(body, fence)
	if end == -1 {
		return "", ErrUnterminatedFence
	}
	inner := strings.TrimSpace(body[:end])
	if inner == "" {
		return "", ErrEmpty
	}
	return inner, nil
}

func isTagByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_' || b == '-' || b == '+'
}

// DecodeObject strips any fence from s and decodes the single JSON object it
// must contain into v. Anything else, including trailing text after the
// object, is a parse failure.
func DecodeObject(s string, v any) error {
	body, err := StripFence(s)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(body, "{") {
		return ErrNotObject
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode model JSON: trailing data after object")
	}
	return nil
}

package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

// Validation limits.
const (
	DefaultMaxBodySize       = 64 << 10 // 64 KiB
	DefaultMaxJSONDepth      = 16
	DefaultMaxQuestionLength = 4000 // runes
)

// Validation errors.
var (
	ErrBodyTooLarge     = errors.New("request body exceeds maximum size")
	ErrJSONTooDeep      = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON      = errors.New("invalid JSON")
	ErrQuestionTooLong  = errors.New("question exceeds maximum length")
	ErrQuestionEncoding = errors.New("question is not valid UTF-8")
)

// ValidateBody checks an inbound JSON payload (HTTP body or websocket
// frame) for size and nesting depth. Non-positive limits use the defaults.
func ValidateBody(data []byte, maxSize, maxDepth int) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	if len(data) > maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrBodyTooLarge, len(data), maxSize)
	}
	return validateJSONDepth(data, maxDepth)
}

func validateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	iter := jsonAPI.BorrowIterator(data)
	defer jsonAPI.ReturnIterator(iter)

	tooDeep := 0
	var walk func(depth int) bool
	walk = func(depth int) bool {
		switch iter.WhatIsNext() {
		case jsoniter.ObjectValue:
			if depth+1 > limit {
				tooDeep = depth + 1
				return false
			}
			return iter.ReadObjectCB(func(*jsoniter.Iterator, string) bool { return walk(depth + 1) })
		case jsoniter.ArrayValue:
			if depth+1 > limit {
				tooDeep = depth + 1
				return false
			}
			return iter.ReadArrayCB(func(*jsoniter.Iterator) bool { return walk(depth + 1) })
		default:
			iter.Skip()
			return iter.Error == nil
		}
	}

	// Several concatenated values are accepted, as on a websocket stream.
	for {
		walk(0)
		if tooDeep > 0 {
			return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, tooDeep, limit)
		}
		// io.EOF only means a trailing scalar ran to the end of the input.
		if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
			return fmt.Errorf("%w: %w", ErrInvalidJSON, iter.Error)
		}
		if iter.WhatIsNext() == jsoniter.InvalidValue {
			if errors.Is(iter.Error, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: trailing data", ErrInvalidJSON)
		}
	}
}

// ValidateQuestion checks a user question before it reaches the model.
// An empty question is valid; the reasoning loop substitutes a placeholder.
func ValidateQuestion(q string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxQuestionLength
	}
	if !utf8.ValidString(q) {
		return ErrQuestionEncoding
	}
	if n := utf8.RuneCountInString(q); n > maxLen {
		return fmt.Errorf("%w: %d runes (max %d)", ErrQuestionTooLong, n, maxLen)
	}
	return nil
}

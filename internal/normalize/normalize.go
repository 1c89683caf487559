// Package normalize turns the final output of an agent runtime into one
// answer. Runtimes disagree on the shape of what they return; Classify
// recognizes the accepted shapes in a fixed priority order and fails with
// an *UnrecognizedShapeError on anything else.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/flemzord/scout/internal/agent"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// FallbackContent is the answer used when the last message of a
// messages-shaped result carries no content.
const FallbackContent = "No content."

// ErrUnrecognizedShape is matched by every *UnrecognizedShapeError.
var ErrUnrecognizedShape = errors.New("normalize: unrecognized result shape")

// UnrecognizedShapeError reports a result none of the rules accept.
// Keys lists the top-level keys when the result was a mapping.
type UnrecognizedShapeError struct {
	Type string
	Keys []string
}

func (e *UnrecognizedShapeError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("%s: %s", ErrUnrecognizedShape, e.Type)
	}
	return fmt.Sprintf("%s: %s with keys [%s]", ErrUnrecognizedShape, e.Type, strings.Join(e.Keys, ", "))
}

// Is matches ErrUnrecognizedShape.
func (e *UnrecognizedShapeError) Is(target error) bool {
	return target == ErrUnrecognizedShape
}

// Shape names the rule that matched a result.
type Shape int

// Shapes in priority order.
const (
	ShapeUnknown Shape = iota
	ShapeAnswerText
	ShapeOutput
	ShapeMessages
)

func (s Shape) String() string {
	switch s {
	case ShapeAnswerText:
		return "answer_text"
	case ShapeOutput:
		return "output"
	case ShapeMessages:
		return "messages"
	default:
		return "unknown"
	}
}

// Result is a classified runtime output.
type Result struct {
	Shape Shape
	Text  string
}

// AnswerTexter is implemented by values that carry their answer directly,
// such as agent.FinalAnswer.
type AnswerTexter interface {
	AnswerText() string
}

// Contenter is implemented by message-like values exposing a content
// string.
type Contenter interface {
	GetContent() string
}

// answerKeys are the mapping keys treated as a direct answer field.
var answerKeys = []string{"content", "answer", "text"}

// Classify applies the rules in order; the first match wins:
//
//  1. a direct answer field (AnswerTexter, Contenter, or a content,
//     answer or text key); blank text becomes FallbackContent
//  2. a mapping with an "output" key
//  3. a mapping with a non-empty "messages" list: the content of the
//     last message, or FallbackContent when it has none
//
// Strings and byte slices are decoded as JSON objects first.
func Classify(v any) (Result, error) {
	switch x := v.(type) {
	case AnswerTexter:
		return Result{Shape: ShapeAnswerText, Text: orFallback(x.AnswerText())}, nil
	case Contenter:
		return Result{Shape: ShapeAnswerText, Text: orFallback(x.GetContent())}, nil
	case map[string]any:
		return classifyMap(x)
	case map[string]string:
		m := make(map[string]any, len(x))
		for k, s := range x {
			m[k] = s
		}
		return classifyMap(m)
	case json.RawMessage:
		return classifyJSON([]byte(x), "json.RawMessage")
	case []byte:
		return classifyJSON(x, "[]byte")
	case string:
		return classifyJSON([]byte(x), "string")
	default:
		return Result{}, &UnrecognizedShapeError{Type: fmt.Sprintf("%T", v)}
	}
}

// Normalize classifies v and returns its answer.
func Normalize(v any) (agent.FinalAnswer, error) {
	res, err := Classify(v)
	if err != nil {
		return agent.FinalAnswer{}, err
	}
	return agent.FinalAnswer{Text: res.Text}, nil
}

func classifyJSON(data []byte, typ string) (Result, error) {
	var m map[string]any
	if err := jsonAPI.Unmarshal(data, &m); err != nil || m == nil {
		return Result{}, &UnrecognizedShapeError{Type: typ}
	}
	return classifyMap(m)
}

func classifyMap(m map[string]any) (Result, error) {
	for _, key := range answerKeys {
		if v, ok := m[key]; ok {
			if text, ok := contentText(v); ok {
				return Result{Shape: ShapeAnswerText, Text: orFallback(text)}, nil
			}
		}
	}

	if v, ok := m["output"]; ok && v != nil {
		return Result{Shape: ShapeOutput, Text: outputText(v)}, nil
	}

	if msgs, ok := asList(m["messages"]); ok && len(msgs) > 0 {
		text, _ := contentOf(msgs[len(msgs)-1])
		return Result{Shape: ShapeMessages, Text: orFallback(text)}, nil
	}

	return Result{}, &UnrecognizedShapeError{
		Type: "map",
		Keys: slices.Sorted(maps.Keys(m)),
	}
}

// contentOf extracts the content of one message element.
func contentOf(msg any) (string, bool) {
	switch x := msg.(type) {
	case AnswerTexter:
		return x.AnswerText(), true
	case Contenter:
		return x.GetContent(), true
	case map[string]any:
		if c, ok := x["content"]; ok {
			return contentText(c)
		}
		return "", false
	case string:
		return x, true
	default:
		return "", false
	}
}

// contentText reads a content value that is either a string, a nested
// mapping with a text or content field, or a list of typed parts.
func contentText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case AnswerTexter:
		return x.AnswerText(), true
	case Contenter:
		return x.GetContent(), true
	case map[string]any:
		for _, key := range []string{"text", "content"} {
			if inner, ok := x[key]; ok {
				return contentText(inner)
			}
		}
		return "", false
	case []any:
		var parts []string
		for _, p := range x {
			if pm, ok := p.(map[string]any); ok {
				if typ, _ := pm["type"].(string); typ != "" && typ != "text" {
					continue
				}
			}
			if s, ok := contentText(p); ok && s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, ""), true
	default:
		return "", false
	}
}

func outputText(v any) string {
	if s, ok := contentText(v); ok {
		return orFallback(s)
	}
	s, err := jsonAPI.MarshalToString(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// asList accepts any slice or array, so typed message lists such as
// []provider.LLMMessage are read element by element.
func asList(v any) ([]any, bool) {
	if x, ok := v.([]any); ok {
		return x, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func orFallback(s string) string {
	if strings.TrimSpace(s) == "" {
		return FallbackContent
	}
	return s
}

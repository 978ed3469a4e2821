package sequence

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxDelayMillis is the largest delay that still fits into a time.Duration.
const maxDelayMillis = int64(math.MaxInt64 / int64(time.Millisecond))

// LoadFile reads the sequence file at path and parses it.
//
// Files with a .yaml or .yml extension are parsed as YAML, every other file as JSON. The returned error wraps
// ErrReadFile, ErrInvalidSyntax or one of the schema errors (ErrNotArray, ErrEntryNotObject, ...).
func LoadFile(path string) (*Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrReadFile, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Parse(data)
	}
}

// Parse parses a JSON array of {"text": string, "delay": positive integer milliseconds} objects.
func Parse(data []byte) (*Sequence, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: expect a JSON document: %w", ErrInvalidSyntax, err)
	}

	return fromDocument(doc)
}

// ParseYAML parses the YAML form of the sequence document. It follows the same schema as Parse.
func ParseYAML(data []byte) (*Sequence, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: expect a YAML document: %w", ErrInvalidSyntax, err)
	}

	return fromDocument(doc)
}

// fromDocument validates a decoded document against the sequence schema and builds the Sequence.
func fromDocument(doc any) (*Sequence, error) {
	entries, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotArray, typeName(doc))
	}

	msgs := make([]Message, 0, len(entries))
	for i, entry := range entries {
		msg, err := toMessage(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}

	return &Sequence{msgs: msgs}, nil
}

func toMessage(entry any) (Message, error) {
	fields, ok := entry.(map[string]any)
	if !ok {
		return Message{}, fmt.Errorf("%w: got %s", ErrEntryNotObject, typeName(entry))
	}

	rawText, found := fields["text"]
	text, ok := rawText.(string)
	if !found || !ok {
		return Message{}, fmt.Errorf("%w: got %s", ErrTextNotString, fieldType(rawText, found))
	}
	if text == "" {
		return Message{}, ErrTextEmpty
	}

	rawDelay, found := fields["delay"]
	delay, ok := toFloat(rawDelay)
	if !found || !ok {
		return Message{}, fmt.Errorf("%w: got %s", ErrDelayNotNumber, fieldType(rawDelay, found))
	}
	if delay <= 0 || math.Trunc(delay) != delay {
		return Message{}, fmt.Errorf("%w: got %v", ErrDelayNotPositiveInt, delay)
	}
	if delay > float64(maxDelayMillis) {
		return Message{}, fmt.Errorf("%w: got %v, maximum is %d", ErrDelayNotPositiveInt, delay, maxDelayMillis)
	}

	return NewMessage(text, int64(delay)), nil
}

// toFloat converts the number types produced by the JSON and YAML decoders.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func fieldType(v any, found bool) string {
	if !found {
		return "missing"
	}

	return typeName(v)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, int, int64, uint64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

package fmdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fivetwenty-io/fmdata/internal/constants"
)

// ValueKind identifies the variant held by a Value.
type ValueKind int

const (
	// KindNull clears a field.
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindContainer
)

// ContainerUpload is a file destined for a container field.
type ContainerUpload struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Value is a field value or find criterion. Writes serialize booleans as 1/0
// and times in the FileMaker timestamp format. Containers never serialize;
// they are uploaded after the record write.
type Value struct {
	kind      ValueKind
	text      string
	container *ContainerUpload
}

// Null returns an empty value.
func Null() Value { return Value{kind: KindNull} }

// String wraps a text value.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindNumber, text: strconv.FormatInt(i, 10)} }

// Float wraps a floating point number.
func Float(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Bool wraps a boolean.
func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, text: "1"}
	}

	return Value{kind: KindBool, text: "0"}
}

// Time wraps a timestamp.
func Time(t time.Time) Value {
	return Value{kind: KindTime, text: t.Format(constants.FileMakerTimestampFormat)}
}

// Container wraps a file for upload.
func Container(filename string, content io.Reader) Value {
	return Value{kind: KindContainer, container: &ContainerUpload{Filename: filename, Content: content}}
}

// ContainerFromFile reads path into memory so the upload can be replayed on retry.
func ContainerFromFile(path string) (Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Value{}, fmt.Errorf("failed to stat container file: %w", err)
	}

	if !info.Mode().IsRegular() {
		return Value{}, fmt.Errorf("%w: %s", constants.ErrNotRegularFile, path)
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Value{}, fmt.Errorf("failed to read container file: %w", err)
	}

	return Container(filepath.Base(path), bytes.NewReader(content)), nil
}

// ValueOf converts a Go value.
func ValueOf(v any) Value {
	switch typed := v.(type) {
	case nil:
		return Null()
	case Value:
		return typed
	case *ContainerUpload:
		return Value{kind: KindContainer, container: typed}
	case string:
		return String(typed)
	case bool:
		return Bool(typed)
	case int:
		return Int(int64(typed))
	case int8:
		return Int(int64(typed))
	case int16:
		return Int(int64(typed))
	case int32:
		return Int(int64(typed))
	case int64:
		return Int(typed)
	case uint:
		return Value{kind: KindNumber, text: strconv.FormatUint(uint64(typed), 10)}
	case uint8:
		return Int(int64(typed))
	case uint16:
		return Int(int64(typed))
	case uint32:
		return Int(int64(typed))
	case uint64:
		return Value{kind: KindNumber, text: strconv.FormatUint(typed, 10)}
	case float32:
		return Float(float64(typed))
	case float64:
		return Float(typed)
	case json.Number:
		return Value{kind: KindNumber, text: typed.String()}
	case time.Time:
		return Time(typed)
	case *time.Time:
		if typed == nil {
			return Null()
		}

		return Time(*typed)
	case fmt.Stringer:
		return String(typed.String())
	default:
		return String(fmt.Sprint(typed))
	}
}

// Kind returns the variant.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is empty.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsContainer reports whether v is a file upload.
func (v Value) IsContainer() bool { return v.kind == KindContainer }

// Upload returns the container payload, or nil.
func (v Value) Upload() *ContainerUpload { return v.container }

// Text returns the textual form used inside find criteria.
func (v Value) Text() string {
	if v.kind == KindContainer && v.container != nil {
		return v.container.Filename
	}

	return v.text
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte(`""`), nil
	case KindNumber, KindBool:
		return []byte(v.text), nil
	case KindContainer:
		return nil, ErrContainerNotSerialized
	case KindString, KindTime:
		return marshalJSON(v.text)
	default:
		return marshalJSON(v.text)
	}
}

// marshalJSON encodes v without HTML escaping so find operators stay readable on the wire.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	err := encoder.Encode(v)
	if err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Values converts a typed slice for WhereIn and friends.
func Values[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}

	return out
}

// Package iojson holds helpers for reading and writing JSON from a command
// line interface perspective.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Error is the JSON shape written for failures in --json mode.
type Error struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func jsonError(msg string, jsonErr error) string {
	msgBytes, _ := json.Marshal(msg)
	errBytes, _ := json.Marshal(jsonErr.Error())
	return fmt.Sprintf(`{"message":%s,"data":{"json_error":%s}}`, msgBytes, errBytes)
}

// MarshalError renders an Error. If marshaling fails a hand-built blob
// carrying the marshal error is returned instead.
func MarshalError(msg string, data map[string]any) string {
	bits, err := json.MarshalIndent(Error{Message: msg, Data: data}, "", "  ")
	if err != nil {
		return jsonError(msg, err)
	}
	return string(bits)
}

// WriteError writes an Error to stderr.
func WriteError(msg string, data map[string]any) error {
	_, err := fmt.Fprintln(os.Stderr, MarshalError(msg, data))
	return err
}

// WriteWith writes obj as indented JSON to w. Marshal failures are reported
// on ew.
func WriteWith(w io.Writer, ew io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		_, err = fmt.Fprintln(ew, jsonError("error marshaling in iojson.Write", err))
		return err
	}

	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// Write calls WriteWith with [os.Stdout] and [os.Stderr].
func Write(obj any) error {
	return WriteWith(os.Stdout, os.Stderr, obj)
}

// LineWriter writes one compact JSON object per line, for event streams.
type LineWriter struct {
	enc *json.Encoder
}

// NewLineWriter creates a LineWriter on w.
func NewLineWriter(w io.Writer) *LineWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &LineWriter{enc: enc}
}

// Write encodes obj followed by a newline.
func (lw *LineWriter) Write(obj any) error {
	return lw.enc.Encode(obj)
}

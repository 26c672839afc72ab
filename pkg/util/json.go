package util

import (
	"encoding/json"
	"fmt"
	"io"
)

// PrintPrettyJSON writes v to w as indented JSON followed by a newline.
// Nil slices print as [] rather than null.
func PrintPrettyJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if string(out) == "null" {
		out = []byte("[]")
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

package main

import (
	"encoding/json"
	"fmt"
)

// renderOutput applies the host rendering contract: a plain string renders
// as text, a structured value carrying an html field renders as raw markup,
// anything else as a pretty-printed dump.
func renderOutput(data any) string {
	switch v := data.(type) {
	case string:
		return v
	case map[string]any:
		if markup, ok := v["html"].(string); ok {
			return markup
		}
	}
	dump, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(dump)
}

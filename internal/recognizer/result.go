package recognizer

import (
	"encoding/json"
	"fmt"
)

// Result is the final result document emitted by vosk recognizers.
type Result struct {
	Text  string `json:"text"`
	Words []Word `json:"result"`
}

// DecodeResult parses a vosk final result.
func DecodeResult(raw []byte) (Result, error) {
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, fmt.Errorf("decode recognizer result: %w", err)
	}
	return res, nil
}

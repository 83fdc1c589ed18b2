package keywords

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DeafMist/kpop-radar/backend/internal/models"
)

// ErrEmptyKeyword is returned when decoding a keyword with no text.
var ErrEmptyKeyword = errors.New("keyword is empty")

// Input is a keyword as clients send it: either free text or an already
// bilingual pair. Exactly one of Text and Pair is set.
type Input struct {
	Text string
	Pair *models.Keyword
}

// Text wraps free-text keyword input.
func Text(s string) Input {
	return Input{Text: s}
}

// Pair wraps an already bilingual keyword.
func Pair(k models.Keyword) Input {
	return Input{Pair: &k}
}

// Texts wraps each string as free-text input.
func Texts(values ...string) []Input {
	out := make([]Input, 0, len(values))
	for _, v := range values {
		out = append(out, Text(v))
	}
	return out
}

// Pairs wraps each keyword as pair input.
func Pairs(values []models.Keyword) []Input {
	out := make([]Input, 0, len(values))
	for _, v := range values {
		out = append(out, Pair(v))
	}
	return out
}

// String returns the input as it would be displayed before normalization.
func (in Input) String() string {
	if in.Pair != nil {
		return in.Pair.Display()
	}
	return in.Text
}

// UnmarshalJSON accepts either a JSON string or an {"en","ko"} object.
func (in *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode keyword: %w", err)
		}
		if strings.TrimSpace(s) == "" {
			return ErrEmptyKeyword
		}
		*in = Text(s)
		return nil
	}

	var k models.Keyword
	if err := json.Unmarshal(data, &k); err != nil {
		return fmt.Errorf("decode keyword: %w", err)
	}
	k.EN = strings.TrimSpace(k.EN)
	k.KO = strings.TrimSpace(k.KO)
	if k.EN == "" && k.KO == "" {
		return ErrEmptyKeyword
	}
	*in = Pair(k)
	return nil
}

// MarshalJSON writes text input as a string and pairs as an object.
func (in Input) MarshalJSON() ([]byte, error) {
	if in.Pair != nil {
		return json.Marshal(in.Pair)
	}
	return json.Marshal(in.Text)
}

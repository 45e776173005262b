package events

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// ErrInvalidEvent is returned when an encoded event cannot be used.
var ErrInvalidEvent = errors.New("invalid event")

const maxLineSize = 4 * 1024 * 1024

// UnmarshalJSON accepts integers either as JSON numbers or as decimal/0x-hex strings.
func (d *Data) UnmarshalJSON(b []byte) error {
	var raw struct {
		AddressItems map[string]string          `json:"addressItems"`
		UintItems    map[string]json.RawMessage `json:"uintItems"`
		IntItems     map[string]json.RawMessage `json:"intItems"`
		BoolItems    map[string]bool            `json:"boolItems"`
		Bytes32Items map[string]string          `json:"bytes32Items"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	uints, err := parseBigMap(raw.UintItems, false)
	if err != nil {
		return err
	}
	ints, err := parseBigMap(raw.IntItems, true)
	if err != nil {
		return err
	}

	*d = Data{
		AddressItems: lowerValues(raw.AddressItems),
		UintItems:    uints,
		IntItems:     ints,
		BoolItems:    raw.BoolItems,
		Bytes32Items: lowerValues(raw.Bytes32Items),
	}
	return nil
}

func parseBigMap(raw map[string]json.RawMessage, signed bool) (map[string]*big.Int, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]*big.Int, len(raw))
	for name, msg := range raw {
		v, err := parseBig(msg)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidEvent, name, err)
		}
		if !signed && v.Sign() < 0 {
			return nil, fmt.Errorf("%w: field %q: negative unsigned value", ErrInvalidEvent, name)
		}
		out[name] = v
	}
	return out, nil
}

// parseBig reads a decimal or 0x-prefixed hex integer with an optional leading
// minus sign. Leading zeros stay decimal; other Go literal forms are rejected.
func parseBig(msg json.RawMessage) (*big.Int, error) {
	s := strings.Trim(strings.TrimSpace(string(msg)), `"`)

	digits, neg := s, false
	if strings.HasPrefix(digits, "-") {
		digits, neg = digits[1:], true
	}
	base := 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits, base = digits[2:], 16
	}
	if digits == "" || strings.ContainsAny(digits, "+-_") {
		return nil, fmt.Errorf("not an integer: %s", s)
	}

	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("not an integer: %s", s)
	}
	if neg {
		v.Neg(v)
	}
	return v, nil
}

func lowerValues(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = strings.ToLower(v)
	}
	return out
}

// Validate checks that the envelope carries the fields required for routing
// and identity derivation.
func Validate(e *Event) error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidEvent)
	}
	if e.TxHash == "" {
		return fmt.Errorf("%w: empty tx hash", ErrInvalidEvent)
	}
	return nil
}

// Decode parses a single JSON-encoded event and normalizes hex casing.
func Decode(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	e.TxHash = strings.ToLower(e.TxHash)
	e.From = strings.ToLower(e.From)
	e.To = strings.ToLower(e.To)
	if err := Validate(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Encode renders an event as a single JSON line without the trailing newline.
func Encode(e *Event) ([]byte, error) {
	return json.Marshal(e)
}

// ReadAll decodes a JSON-lines stream. Blank lines are skipped.
func ReadAll(r io.Reader) ([]*Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out []*Event
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		e, err := Decode([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return out, nil
}

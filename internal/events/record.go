package events

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrMissingField is returned when a handler requires a field the event lacks.
var ErrMissingField = errors.New("missing event field")

// Record is a read-only accessor over an event's named fields.
// Every accessor reports whether the field was present.
type Record interface {
	Address(name string) (string, bool)
	Uint(name string) (*big.Int, bool)
	Int(name string) (*big.Int, bool)
	Bool(name string) (bool, bool)
	Bytes32(name string) (string, bool)
}

// Data holds the typed item maps of an event.
// Addresses and bytes32 keys are stored as lower-case 0x hex.
type Data struct {
	AddressItems map[string]string   `json:"addressItems,omitempty"`
	UintItems    map[string]*big.Int `json:"uintItems,omitempty"`
	IntItems     map[string]*big.Int `json:"intItems,omitempty"`
	BoolItems    map[string]bool     `json:"boolItems,omitempty"`
	Bytes32Items map[string]string   `json:"bytes32Items,omitempty"`
}

// Address returns an address item as lower-case hex.
func (d *Data) Address(name string) (string, bool) {
	v, ok := d.AddressItems[name]
	if !ok {
		return "", false
	}
	return strings.ToLower(v), true
}

// Uint returns a copy of an unsigned integer item.
func (d *Data) Uint(name string) (*big.Int, bool) {
	v, ok := d.UintItems[name]
	if !ok || v == nil {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

// Int returns a copy of a signed integer item.
func (d *Data) Int(name string) (*big.Int, bool) {
	v, ok := d.IntItems[name]
	if !ok || v == nil {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

// Bool returns a boolean item.
func (d *Data) Bool(name string) (bool, bool) {
	v, ok := d.BoolItems[name]
	return v, ok
}

// Bytes32 returns a 32-byte key as lower-case 0x hex.
func (d *Data) Bytes32(name string) (string, bool) {
	v, ok := d.Bytes32Items[name]
	if !ok {
		return "", false
	}
	return strings.ToLower(v), true
}

var _ Record = (*Data)(nil)

// Reader reads required fields and remembers the first missing one.
// Zero values are returned for missing fields; check Err before using them.
type Reader struct {
	event string
	rec   Record
	err   error
}

// NewReader creates a Reader for the named event.
func NewReader(event string, rec Record) *Reader {
	return &Reader{event: event, rec: rec}
}

func (r *Reader) missing(kind, name string) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w: %s %q", r.event, ErrMissingField, kind, name)
	}
}

// Address reads a required address field.
func (r *Reader) Address(name string) string {
	v, ok := r.rec.Address(name)
	if !ok {
		r.missing("address", name)
	}
	return v
}

// Uint reads a required unsigned integer field.
func (r *Reader) Uint(name string) *big.Int {
	v, ok := r.rec.Uint(name)
	if !ok {
		r.missing("uint", name)
		return new(big.Int)
	}
	return v
}

// Amount reads a required integer field from the uint items, falling back to
// the int items for signed values.
func (r *Reader) Amount(name string) *big.Int {
	if v, ok := r.rec.Uint(name); ok {
		return v
	}
	if v, ok := r.rec.Int(name); ok {
		return v
	}
	r.missing("uint/int", name)
	return new(big.Int)
}

// Bool reads a required boolean field.
func (r *Reader) Bool(name string) bool {
	v, ok := r.rec.Bool(name)
	if !ok {
		r.missing("bool", name)
	}
	return v
}

// Bytes32 reads a required bytes32 field.
func (r *Reader) Bytes32(name string) string {
	v, ok := r.rec.Bytes32(name)
	if !ok {
		r.missing("bytes32", name)
	}
	return v
}

// Err returns the first missing-field error, if any.
func (r *Reader) Err() error {
	return r.err
}

// Package correlation encodes the custom ids attached to batch inference
// requests so a response can be routed back to its (record, attribute) pair.
//
// A key is written as "{record}_{attribute}_{nonce}". The record id may itself
// contain the delimiter: attribute and nonce are validated to be delimiter
// free and decoding peels a fixed number of segments off the right.
package correlation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const Delimiter = "_"

type Key struct {
	RecordID  string
	Attribute string
	Nonce     string
}

// Codec is shared by the batch builder and the merge step of one stage.
// WithAttribute and WithNonce fix how many right-hand segments a key carries.
type Codec struct {
	withAttribute bool
	withNonce     bool
	nonce         func() string
}

type Option func(*Codec)

func WithAttribute() Option {
	return func(c *Codec) { c.withAttribute = true }
}

func WithNonce() Option {
	return func(c *Codec) { c.withNonce = true }
}

// WithNonceSource overrides the nonce generator; it implies WithNonce.
func WithNonceSource(fn func() string) Option {
	return func(c *Codec) {
		c.withNonce = true
		c.nonce = fn
	}
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{nonce: newNonce}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtractionCodec keys one request per record: "{record}_{nonce}".
func ExtractionCodec() *Codec {
	return NewCodec(WithNonce())
}

// EmbeddingCodec keys one request per record attribute: "{record}_{attribute}_{nonce}".
func EmbeddingCodec() *Codec {
	return NewCodec(WithAttribute(), WithNonce())
}

func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// New builds a key for record/attribute with a fresh nonce when the codec
// uses one.
func (c *Codec) New(recordID, attribute string) Key {
	k := Key{RecordID: recordID, Attribute: attribute}
	if c.withNonce {
		k.Nonce = c.nonce()
	}
	return k
}

func (c *Codec) Encode(k Key) (string, error) {
	if k.RecordID == "" {
		return "", fmt.Errorf("correlation: empty record id")
	}
	parts := []string{k.RecordID}
	if c.withAttribute {
		if err := checkSegment("attribute", k.Attribute); err != nil {
			return "", err
		}
		parts = append(parts, k.Attribute)
	} else if k.Attribute != "" {
		return "", fmt.Errorf("correlation: codec does not carry an attribute")
	}
	if c.withNonce {
		if err := checkSegment("nonce", k.Nonce); err != nil {
			return "", err
		}
		parts = append(parts, k.Nonce)
	} else if k.Nonce != "" {
		return "", fmt.Errorf("correlation: codec does not carry a nonce")
	}
	return strings.Join(parts, Delimiter), nil
}

func (c *Codec) Decode(s string) (Key, error) {
	var k Key
	rest := s
	if c.withNonce {
		var ok bool
		rest, k.Nonce, ok = cutLast(rest)
		if !ok || k.Nonce == "" {
			return Key{}, fmt.Errorf("correlation: %q has no nonce segment", s)
		}
	}
	if c.withAttribute {
		var ok bool
		rest, k.Attribute, ok = cutLast(rest)
		if !ok || k.Attribute == "" {
			return Key{}, fmt.Errorf("correlation: %q has no attribute segment", s)
		}
	}
	if rest == "" {
		return Key{}, fmt.Errorf("correlation: %q has no record id", s)
	}
	k.RecordID = rest
	return k, nil
}

func cutLast(s string) (string, string, bool) {
	idx := strings.LastIndex(s, Delimiter)
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+len(Delimiter):], true
}

func checkSegment(name, v string) error {
	if v == "" {
		return fmt.Errorf("correlation: empty %s", name)
	}
	if strings.Contains(v, Delimiter) {
		return fmt.Errorf("correlation: %s %q contains %q", name, v, Delimiter)
	}
	return nil
}

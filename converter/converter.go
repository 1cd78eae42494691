// Package converter provides ready-made string converters for pluggable stores:
// Base64, key prefixes for namespacing, and deterministic authenticated encryption.
// Every encoder here has a matching decoder that inverts it.
package converter

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// ErrMissingPrefix is returned by a PrefixDecoder given a string without its prefix.
var ErrMissingPrefix = errors.New("value does not carry the expected prefix")

// Func adapts a function to a converter.
type Func func(input string) (string, error)

// Convert calls f(input).
func (f Func) Convert(input string) (string, error) {
	return f(input)
}

// Converter is the method set shared by every converter in this package.
type Converter interface {
	Convert(input string) (string, error)
}

// Base64Encoder encodes UTF-8 text as Base64.
type Base64Encoder struct {
	Encoding *base64.Encoding
}

// Base64Decoder decodes Base64 back into text.
type Base64Decoder struct {
	Encoding *base64.Encoding
}

// NewBase64 returns an encoder/decoder pair using standard padded Base64.
func NewBase64() (Base64Encoder, Base64Decoder) {
	return Base64Encoder{Encoding: base64.StdEncoding}, Base64Decoder{Encoding: base64.StdEncoding}
}

// Convert returns the Base64 form of input.
func (b Base64Encoder) Convert(input string) (string, error) {
	return encoding(b.Encoding).EncodeToString([]byte(input)), nil
}

// Convert decodes input, failing on malformed Base64.
func (b Base64Decoder) Convert(input string) (string, error) {
	out, err := encoding(b.Encoding).DecodeString(input)
	if err != nil {
		return "", errors.Wrap(err, "Base64Decoder.Convert")
	}
	return string(out), nil
}

func encoding(e *base64.Encoding) *base64.Encoding {
	if e == nil {
		return base64.StdEncoding
	}
	return e
}

// PrefixEncoder prepends Prefix, giving each store user its own key namespace.
type PrefixEncoder struct {
	Prefix string
}

// PrefixDecoder strips Prefix and fails on input without it.
type PrefixDecoder struct {
	Prefix string
}

// Convert returns input with Prefix prepended.
func (p PrefixEncoder) Convert(input string) (string, error) {
	return p.Prefix + input, nil
}

// Convert returns input without Prefix.
func (p PrefixDecoder) Convert(input string) (string, error) {
	out, ok := strings.CutPrefix(input, p.Prefix)
	if !ok {
		return "", errors.Wrapf(ErrMissingPrefix, "prefix %q", p.Prefix)
	}
	return out, nil
}

// Chain runs converters in order, feeding each output into the next.
// To invert a chain of encoders, chain their decoders in reverse order.
func Chain(converters ...Converter) Func {
	return func(input string) (string, error) {
		out := input
		for _, c := range converters {
			var err error
			if out, err = c.Convert(out); err != nil {
				return "", err
			}
		}
		return out, nil
	}
}

// Identity returns its input unchanged.
var Identity = Func(func(input string) (string, error) { return input, nil })

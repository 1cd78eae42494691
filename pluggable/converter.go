package pluggable

// Converter turns one string into another. A Store uses four of them:
// key encoder, key decoder, value encoder and value decoder.
//
// Implementations must be deterministic and safe for concurrent use, and each
// decoder must invert its encoder over the keys and values actually stored.
// The Store does not check this; a mismatched pair silently corrupts data.
// Errors returned by Convert reach the caller unchanged.
type Converter interface {
	Convert(input string) (string, error)
}

// ConverterFunc adapts a function to a Converter.
type ConverterFunc func(input string) (string, error)

// Convert calls f(input).
func (f ConverterFunc) Convert(input string) (string, error) {
	return f(input)
}

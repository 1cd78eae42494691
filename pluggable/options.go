package pluggable

// Option configures a Store.
// These functions are intended to be used with the New function.
type Option func(s *Store)

// WithKeyEncoder sets the converter applied to keys on the way into the base store.
func WithKeyEncoder(c Converter) Option {
	return func(s *Store) {
		s.keyEncoder = c
	}
}

// WithKeyDecoder sets the converter applied to keys coming out of the base store.
func WithKeyDecoder(c Converter) Option {
	return func(s *Store) {
		s.keyDecoder = c
	}
}

// WithValueEncoder sets the converter applied to values on the way into the base store.
func WithValueEncoder(c Converter) Option {
	return func(s *Store) {
		s.valueEncoder = c
	}
}

// WithValueDecoder sets the converter applied to values coming out of the base store.
func WithValueDecoder(c Converter) Option {
	return func(s *Store) {
		s.valueDecoder = c
	}
}

// WithEncoder sets c as both the key and the value encoder.
//
// Example:
//
//	New(base, WithEncoder(enc), WithDecoder(dec))
func WithEncoder(c Converter) Option {
	return func(s *Store) {
		s.keyEncoder = c
		s.valueEncoder = c
	}
}

// WithDecoder sets c as both the key and the value decoder.
func WithDecoder(c Converter) Option {
	return func(s *Store) {
		s.keyDecoder = c
		s.valueDecoder = c
	}
}

// WithListenerErrorHandler sets the function called when a key reported by the base
// store cannot be decoded for a change listener. The listener is not called in that case.
// By default the failure is logged.
func WithListenerErrorHandler(fn func(physicalKey string, err error)) Option {
	return func(s *Store) {
		s.onListenerError = fn
	}
}

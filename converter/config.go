package converter

import (
	"encoding/hex"
	"os"
	"slices"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Step names accepted in a Config.
const (
	StepBase64 = "base64"
	StepPrefix = "prefix"
	StepCipher = "cipher"
)

// Config describes the converter pipelines for keys and values.
//
// Example:
//
//	keys:
//	  - type: prefix
//	    prefix: "app/"
//	  - type: base64
//	values:
//	  - type: cipher
//	    key_hex: "000102...1f"
type Config struct {
	Keys   []StepConfig `yaml:"keys"`
	Values []StepConfig `yaml:"values"`
}

// StepConfig is one converter in a pipeline.
type StepConfig struct {
	Type   string `yaml:"type"`
	Prefix string `yaml:"prefix,omitempty"`
	KeyHex string `yaml:"key_hex,omitempty"` // cipher key, 64 hex characters
}

// Pipeline holds the four converter roles built from a Config.
type Pipeline struct {
	KeyEncoder   Converter
	KeyDecoder   Converter
	ValueEncoder Converter
	ValueDecoder Converter
}

// LoadConfig reads a YAML pipeline description from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "LoadConfig ReadFile")
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML pipeline description.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "ParseConfig yaml.Unmarshal")
	}
	return &cfg, nil
}

// Build turns the configuration into encoder/decoder pairs. An empty pipeline
// leaves its keys or values unchanged.
func (c *Config) Build() (Pipeline, error) {
	keyEnc, keyDec, err := buildChain(c.Keys)
	if err != nil {
		return Pipeline{}, errors.Wrap(err, "keys")
	}
	valueEnc, valueDec, err := buildChain(c.Values)
	if err != nil {
		return Pipeline{}, errors.Wrap(err, "values")
	}
	return Pipeline{
		KeyEncoder:   keyEnc,
		KeyDecoder:   keyDec,
		ValueEncoder: valueEnc,
		ValueDecoder: valueDec,
	}, nil
}

func buildChain(steps []StepConfig) (Converter, Converter, error) {
	if len(steps) == 0 {
		return Identity, Identity, nil
	}
	encoders := make([]Converter, 0, len(steps))
	decoders := make([]Converter, 0, len(steps))
	for i, step := range steps {
		enc, dec, err := buildStep(step)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "step %d", i)
		}
		encoders = append(encoders, enc)
		decoders = append(decoders, dec)
	}
	slices.Reverse(decoders)
	return Chain(encoders...), Chain(decoders...), nil
}

func buildStep(step StepConfig) (Converter, Converter, error) {
	switch step.Type {
	case StepBase64:
		enc, dec := NewBase64()
		return enc, dec, nil
	case StepPrefix:
		return PrefixEncoder{Prefix: step.Prefix}, PrefixDecoder{Prefix: step.Prefix}, nil
	case StepCipher:
		key, err := hex.DecodeString(step.KeyHex)
		if err != nil {
			return nil, nil, errors.Wrap(err, "key_hex")
		}
		c, err := NewCipher(key)
		if err != nil {
			return nil, nil, err
		}
		return c.Encoder(), c.Decoder(), nil
	}
	return nil, nil, errors.Errorf("unknown converter type %q", step.Type)
}

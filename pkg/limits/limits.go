// Package limits holds the implementation-defined soft ceilings spec.md
// leaves open: the HTTP/2 non-DATA frame size cap, the PDF lexer's
// start-condition stack depth, and the PDF name/number/dictionary-key
// length bounds. They are expressed as a validated, YAML-loadable
// config in the teacher corpus's own style (pkg/config +
// go-playground/validator) rather than as scattered magic numbers.
package limits

import (
	"fmt"
	"os"

	validator "github.com/go-playground/validator/v10"
	yaml "gopkg.in/yaml.v3"
)

// Limits is the full set of tunable ceilings for one inspection core
// instance. All fields have sane production defaults (see Default) and
// are re-checked by Validate after being loaded from YAML.
type Limits struct {
	// MaxNonDataFrameOctets bounds a non-DATA HTTP/2 frame (9-byte
	// header + payload). Frames above this are aborted rather than
	// chunked across flushes (spec.md §9 FIXIT-M).
	MaxNonDataFrameOctets uint32 `yaml:"max_non_data_frame_octets" validate:"required,gt=9"`

	// MaxDataFrameOctets bounds a single DATA frame's declared length.
	MaxDataFrameOctets uint32 `yaml:"max_data_frame_octets" validate:"required,gt=0"`

	// LexerStackDepth bounds the PDFTok start-condition stack
	// (spec.md §3, §9: "depth ≤ some fixed bound, e.g. 32").
	LexerStackDepth int `yaml:"lexer_stack_depth" validate:"required,gt=0,lte=256"`

	// MaxNameLength bounds a PDF name token, excluding the leading
	// slash (spec.md §4.3: "1..256 regular chars").
	MaxNameLength int `yaml:"max_name_length" validate:"required,gt=0"`

	// MaxNumberDigits is the configured digit cap for a PDF
	// integer/real token (spec.md §4.3: "up to 16 digits"). It is
	// loaded and validated here; pkg/pdftok does not read it, so number
	// tokens are not length-capped by the lexer.
	MaxNumberDigits int `yaml:"max_number_digits" validate:"required,gt=0"`

	// MaxDictKeyLength bounds the remembered dictionary key used to
	// detect "/JS" (spec.md §3: "obj_entry.key[] ... bounded,
	// truncated").
	MaxDictKeyLength int `yaml:"max_dict_key_length" validate:"required,gt=0"`

	// MaxJSRefs bounds the number of distinct indirect-object ids
	// tracked in js_refs. Beyond this the oldest entries are evicted;
	// see pkg/pdftok's use of an LRU set instead of a bare map.
	MaxJSRefs int `yaml:"max_js_refs" validate:"required,gt=0"`
}

// Default returns the production defaults used when no override file
// is supplied.
func Default() Limits {
	return Limits{
		MaxNonDataFrameOctets: 63 * 1024, // 63 KiB, per spec.md §6
		MaxDataFrameOctets:    16 * 1024 * 1024,
		LexerStackDepth:       32,
		MaxNameLength:         256,
		MaxNumberDigits:       16,
		MaxDictKeyLength:      256,
		MaxJSRefs:             4096,
	}
}

// Load reads and validates a YAML limits override file. Fields absent
// from the file keep their Default() values; if the merged result
// fails validation, Load returns an error. Callers get a fully
// populated, validated Limits or an error, never a partially-zero
// struct.
func Load(path string) (Limits, error) {
	l := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Limits{}, fmt.Errorf("reading limits file: %w", err)
	}

	if err := yaml.Unmarshal(raw, &l); err != nil {
		return Limits{}, fmt.Errorf("parsing limits file: %w", err)
	}

	if err := l.Validate(); err != nil {
		return Limits{}, err
	}

	return l, nil
}

// Validate checks the struct tags and returns a wrapped
// validator.ValidationErrors on failure.
func (l Limits) Validate() error {
	v := validator.New()
	if err := v.Struct(l); err != nil {
		return fmt.Errorf("invalid limits: %w", err)
	}
	return nil
}

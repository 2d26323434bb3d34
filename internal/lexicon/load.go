package lexicon

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// LoadFile reads a lexicon from path. The format is chosen by extension:
// .yaml/.yml for YAML, .cue for CUE. The result is validated.
func LoadFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("read lexicon: unsupported extension %q", filepath.Ext(path))
	}
}

// ParseYAML decodes a lexicon document, rejecting unknown fields.
func ParseYAML(data []byte) (*Lexicon, error) {
	var lex Lexicon
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&lex); err != nil {
		return nil, fmt.Errorf("parse lexicon YAML: %w", err)
	}
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}

// ParseCUE evaluates a CUE document that defines a top-level `lexicon`
// field, unifies it with the embedded schema and decodes it.
func ParseCUE(data []byte, filename string) (*Lexicon, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile lexicon schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile lexicon CUE: %w", err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate lexicon CUE: %w", err)
	}

	lexVal := unified.LookupPath(cue.ParsePath("lexicon"))
	if !lexVal.Exists() {
		return nil, fmt.Errorf("validate lexicon CUE: missing top-level lexicon field")
	}

	var lex Lexicon
	if err := lexVal.Decode(&lex); err != nil {
		return nil, fmt.Errorf("decode lexicon CUE: %w", err)
	}
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}

package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://hexstride.io/schemas/"

// ErrMalformed wraps every inbound decode or schema failure.
var ErrMalformed = errors.New("malformed message")

var inboundSchemas = map[string]string{
	TypeHello:           "hello",
	TypeMove:            "move",
	TypeSnapshotRequest: "snapshot_request",
}

// Validator checks messages against the embedded JSON schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	ents, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", e.Name(), err)
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".schema.json"))
	}

	v := &Validator{schemas: map[string]*jsonschema.Schema{}}
	for _, name := range names {
		s, err := c.Compile(schemaBase + name + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = s
	}
	return v, nil
}

// Inbound decodes the message type and validates b against that type's schema.
// Types without an inbound schema are rejected.
func (v *Validator) Inbound(b []byte) (BaseMessage, error) {
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return BaseMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	base, err := DecodeBase(b)
	if err != nil {
		return BaseMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	name, ok := inboundSchemas[base.Type]
	if !ok {
		return base, fmt.Errorf("%w: unknown type %q", ErrMalformed, base.Type)
	}
	if err := v.schemas[name].Validate(doc); err != nil {
		return base, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return base, nil
}

// Validate checks a decoded JSON value against a named schema, e.g. "update".
func (v *Validator) Validate(name string, doc any) error {
	s, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	return s.Validate(doc)
}

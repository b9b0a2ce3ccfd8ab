package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"procurement/internal/workflow"

	"github.com/hashicorp/golang-lru/v2/expirable"
	js "github.com/santhosh-tekuri/jsonschema/v5"
)

// PayloadValidator checks a document payload against the schema of its kind.
type PayloadValidator interface {
	Validate(kind workflow.Kind, payload []byte) error
}

type payloadValidator struct {
	mu      sync.Mutex
	schemas map[workflow.Kind]string
	cache   *expirable.LRU[workflow.Kind, *js.Schema]
}

// NewPayloadValidator compiles schemas lazily and keeps them for ttl.
func NewPayloadValidator(ttl time.Duration) PayloadValidator {
	return newPayloadValidator(payloadSchemas, ttl)
}

func newPayloadValidator(schemas map[workflow.Kind]string, ttl time.Duration) *payloadValidator {
	return &payloadValidator{
		schemas: schemas,
		cache:   expirable.NewLRU[workflow.Kind, *js.Schema](len(schemas), nil, ttl),
	}
}

func (v *payloadValidator) Validate(kind workflow.Kind, payload []byte) error {
	compiled, err := v.schema(kind)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: payload is not valid JSON: %v", ErrPayloadInvalid, err)
	}

	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s", ErrPayloadInvalid, describe(err))
	}
	return nil
}

func (v *payloadValidator) schema(kind workflow.Kind) (*js.Schema, error) {
	if s, ok := v.cache.Get(kind); ok {
		return s, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.cache.Get(kind); ok {
		return s, nil
	}

	src, ok := v.schemas[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	url := "mem://payload/" + string(kind) + ".json"
	c := js.NewCompiler()
	if err := c.AddResource(url, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("failed to add %s schema: %w", kind, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s schema: %w", kind, err)
	}

	v.cache.Add(kind, compiled)
	return compiled, nil
}

// describe flattens a schema validation error into "path: message" parts.
func describe(err error) string {
	ve, ok := err.(*js.ValidationError)
	if !ok {
		return err.Error()
	}

	var parts []string
	var walk func(e *js.ValidationError)
	walk = func(e *js.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			parts = append(parts, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(parts, "; ")
}

package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

// Operation is a mutating request kind that carries a body.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
)

var (
	ErrUnknownEndpoint  = errors.New("registry: endpoint has no registered constraints")
	ErrUnknownOperation = errors.New("registry: endpoint declares no fields for operation")
)

//go:embed constraints.yaml
var defaultConstraints []byte

// Registry maps (endpoint, operation) to the ordered list of fields the
// remote API accepts. It is read-only once built.
type Registry struct {
	constraints map[string]map[Operation][]string
}

type constraintsFile struct {
	APIConstraints map[string]map[Operation][]string `yaml:"apiConstraints"`
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the registry parsed from the embedded constraints table.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Parse(defaultConstraints)
	})
	return defaultRegistry, defaultErr
}

// Load reads a constraints table in the embedded file's format.
func Load(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("registry: read constraints: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var file constraintsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("registry: parse constraints: %w", err)
	}
	if len(file.APIConstraints) == 0 {
		return nil, errors.New("registry: constraints table is empty")
	}

	constraints := make(map[string]map[Operation][]string, len(file.APIConstraints))
	for endpoint, ops := range file.APIConstraints {
		if endpoint == "" {
			return nil, errors.New("registry: empty endpoint name")
		}
		byOp := make(map[Operation][]string, len(ops))
		for op, fields := range ops {
			if op != OpCreate && op != OpUpdate {
				return nil, fmt.Errorf("registry: %s: unsupported operation %q", endpoint, op)
			}
			seen := make(map[string]struct{}, len(fields))
			cleaned := make([]string, 0, len(fields))
			for _, f := range fields {
				if f == "" {
					return nil, fmt.Errorf("registry: %s/%s: empty field name", endpoint, op)
				}
				if _, dup := seen[f]; dup {
					continue
				}
				seen[f] = struct{}{}
				cleaned = append(cleaned, f)
			}
			byOp[op] = cleaned
		}
		constraints[endpoint] = byOp
	}
	return &Registry{constraints: constraints}, nil
}

// Allowed returns the fields that may be sent for endpoint when performing op.
// The returned slice is a copy.
func (r *Registry) Allowed(endpoint string, op Operation) ([]string, error) {
	ops, ok := r.constraints[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, endpoint)
	}
	fields, ok := ops[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q %s", ErrUnknownOperation, endpoint, op)
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out, nil
}

// Filter drops every key of data that is not allowed for (endpoint, op).
func (r *Registry) Filter(endpoint string, op Operation, data map[string]any) (map[string]any, error) {
	allowed, err := r.Allowed(endpoint, op)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(allowed))
	for _, key := range allowed {
		if v, ok := data[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

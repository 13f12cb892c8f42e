// Package cipher exposes the classical cipher engine as named operations that
// can be listed, executed, chained into pipelines and saved as recipes.
package cipher

import (
	"context"
	"fmt"

	"github.com/RowanDark/cipherlab/internal/cipherr"
)

// OperationType defines the category of transformation operation
type OperationType string

const (
	OperationTypeEncrypt OperationType = "encrypt"
	OperationTypeDecrypt OperationType = "decrypt"
	// OperationTypeInvolution marks operations that are their own inverse.
	OperationTypeInvolution OperationType = "involution"
	OperationTypeKeygen     OperationType = "keygen"
)

// ParamKind is the expected type of an operation parameter.
type ParamKind string

const (
	ParamString  ParamKind = "string"
	ParamInteger ParamKind = "integer"
	ParamBool    ParamKind = "bool"
)

// ParamSpec documents one parameter an operation reads.
type ParamSpec struct {
	Name        string    `json:"name"`
	Kind        ParamKind `json:"kind"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// Operation represents a single transformation operation that can be applied to data
type Operation interface {
	// Name returns the unique identifier for this operation
	Name() string

	// Type returns the category of this operation
	Type() OperationType

	// Description returns a human-readable description
	Description() string

	// Params lists the parameters Execute reads
	Params() []ParamSpec

	// Execute applies the operation to the input data
	Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error)

	// Reverse returns the inverse operation if available
	Reverse() (Operation, bool)
}

// OperationConfig represents configuration for an operation in a pipeline
type OperationConfig struct {
	Name       string                 `json:"name" yaml:"name"`
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Pipeline represents a chain of operations that can be applied sequentially
type Pipeline struct {
	Operations []OperationConfig `json:"operations" yaml:"operations"`
	Reversible bool              `json:"reversible" yaml:"reversible"`
}

// Execute runs the pipeline on the input data using the default registry.
func (p *Pipeline) Execute(ctx context.Context, input []byte) ([]byte, error) {
	return p.ExecuteWith(ctx, Default(), input)
}

// ExecuteWith runs the pipeline against an explicit registry.
func (p *Pipeline) ExecuteWith(ctx context.Context, reg *Registry, input []byte) ([]byte, error) {
	result := input
	var err error

	for i, opConfig := range p.Operations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		op, exists := reg.Get(opConfig.Name)
		if !exists {
			return nil, fmt.Errorf("step %d: %w: %s", i, ErrUnknownOperation, opConfig.Name)
		}

		result, err = op.Execute(ctx, result, opConfig.Parameters)
		if err != nil {
			return nil, fmt.Errorf("operation %s failed at step %d: %w", opConfig.Name, i, err)
		}
	}

	return result, nil
}

// Reverse creates a reversed pipeline if all operations are reversible.
// Parameters are carried over unchanged, so a step such as rsa_encrypt must
// already carry the parameters its inverse reads.
func (p *Pipeline) Reverse() (*Pipeline, error) {
	return p.ReverseWith(Default())
}

// ReverseWith reverses the pipeline against an explicit registry.
func (p *Pipeline) ReverseWith(reg *Registry) (*Pipeline, error) {
	if !p.Reversible {
		return nil, cipherr.Validationf("pipeline", "not marked reversible")
	}

	reversed := &Pipeline{
		Operations: make([]OperationConfig, len(p.Operations)),
		Reversible: true,
	}

	for i, opConfig := range p.Operations {
		op, exists := reg.Get(opConfig.Name)
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, opConfig.Name)
		}

		reverseOp, ok := op.Reverse()
		if !ok {
			return nil, cipherr.Validationf("pipeline", "operation %s is not reversible", opConfig.Name)
		}

		reversed.Operations[len(p.Operations)-1-i] = OperationConfig{
			Name:       reverseOp.Name(),
			Parameters: opConfig.Parameters,
		}
	}

	return reversed, nil
}

// Recipe represents a named, reusable transformation pipeline
type Recipe struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Pipeline    Pipeline `json:"pipeline"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// DetectionResult is one candidate decryption proposed by a Detector.
type DetectionResult struct {
	Cipher     string                 `json:"cipher"`
	Operation  string                 `json:"operation"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Shift      int                    `json:"shift"`
	ChiSquared float64                `json:"chi_squared"`
	Confidence float64                `json:"confidence"` // 0.0 to 1.0
	Preview    string                 `json:"preview"`
	Reasoning  string                 `json:"reasoning"`
}

// Detector proposes likely decryptions of a ciphertext.
type Detector interface {
	Detect(ctx context.Context, input []byte) ([]DetectionResult, error)

	// SupportedCiphers lists the ciphers this detector can attack
	SupportedCiphers() []string
}

// BaseOperation provides common functionality for operations
type BaseOperation struct {
	NameValue        string
	TypeValue        OperationType
	DescriptionValue string
	ParamsValue      []ParamSpec
	ReverseOp        Operation
}

func (b *BaseOperation) Name() string {
	return b.NameValue
}

func (b *BaseOperation) Type() OperationType {
	return b.TypeValue
}

func (b *BaseOperation) Description() string {
	return b.DescriptionValue
}

func (b *BaseOperation) Params() []ParamSpec {
	out := make([]ParamSpec, len(b.ParamsValue))
	copy(out, b.ParamsValue)
	return out
}

func (b *BaseOperation) Reverse() (Operation, bool) {
	if b.ReverseOp == nil {
		return nil, false
	}
	return b.ReverseOp, true
}

package dsl

import (
	"fmt"

	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
)

// Builder assembles a test case. Its embedded Steps is the top-level sequence.
type Builder struct {
	Steps
	tc domain.TestCase
}

// New starts a test case with the given id.
func New(id string) *Builder {
	return &Builder{tc: domain.TestCase{ID: id, Name: id}}
}

// Name sets the display name.
func (b *Builder) Name(name string) *Builder {
	b.tc.Name = name
	return b
}

// Describe sets the description.
func (b *Builder) Describe(text string) *Builder {
	b.tc.Description = text
	return b
}

// Var sets an initial variable.
func (b *Builder) Var(name string, value any) *Builder {
	if b.tc.Variables == nil {
		b.tc.Variables = make(map[string]any)
	}
	b.tc.Variables[name] = value
	return b
}

// Schema declares the type of a variable ("string", "int", "float", "bool", "list").
func (b *Builder) Schema(name, typ string) *Builder {
	if b.tc.Schema == nil {
		b.tc.Schema = make(map[string]string)
	}
	b.tc.Schema[name] = typ
	return b
}

// Build returns the test case. The builder may keep being used; later changes
// to step modifiers are visible through the returned steps.
func (b *Builder) Build() *domain.TestCase {
	tc := b.tc
	tc.Steps = b.list
	return &tc
}

// Loader builds every test case into a memory loader.
func Loader(builders ...*Builder) (*memory.Loader, error) {
	cases := make([]*domain.TestCase, len(builders))
	for i, b := range builders {
		cases[i] = b.Build()
	}
	loader, err := memory.NewLoader(cases...)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}

// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Function is a prebuilt tool backed by a typed Go function. The argument
// schema is reflected from Args once, at construction.
//
// Supported struct tags on Args:
//   - json:"name" names the argument
//   - jsonschema:"required" marks it required
//   - jsonschema:"enum=a,enum=b" restricts values
//   - jsonschema_description:"..." documents it
type Function[Args any] struct {
	def Definition
	fn  func(context.Context, Args) (any, error)
}

// NewFunction builds a prebuilt tool. example must be a complete, valid
// argument set; it is shown to the model verbatim.
func NewFunction[Args any](name, description string, example Args, fn func(context.Context, Args) (any, error)) (*Function[Args], error) {
	args, err := reflectArguments[Args]()
	if err != nil {
		return nil, &InvalidDefinitionError{Name: name, Reason: err.Error()}
	}

	exampleMap, err := toMap(example)
	if err != nil {
		return nil, &InvalidDefinitionError{Name: name, Reason: fmt.Sprintf("example: %v", err)}
	}

	def := Definition{
		Name:        name,
		Description: description,
		Path:        "builtin:" + name,
		Arguments:   args,
		Example:     exampleMap,
		Source:      SourcePrebuilt,
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &Function[Args]{def: def, fn: fn}, nil
}

// MustFunction is NewFunction that panics on error. For package-level tools.
func MustFunction[Args any](name, description string, example Args, fn func(context.Context, Args) (any, error)) *Function[Args] {
	f, err := NewFunction(name, description, example, fn)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Function[Args]) Definition() Definition {
	return f.def
}

func (f *Function[Args]) Invoke(ctx context.Context, args map[string]any) (any, error) {
	for _, name := range f.def.RequiredArguments() {
		if _, ok := args[name]; !ok {
			return nil, fmt.Errorf("missing required argument %q", name)
		}
	}

	var typed Args
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &typed,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return f.fn(ctx, typed)
}

func reflectArguments[Args any]() ([]Argument, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(Args))
	if schema.Type != "object" {
		return nil, fmt.Errorf("arguments must be a struct, got schema type %q", schema.Type)
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	var args []Argument
	if schema.Properties == nil {
		return args, nil
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		prop := pair.Value
		arg := Argument{
			Name:        pair.Key,
			Type:        prop.Type,
			Description: prop.Description,
			Required:    required[pair.Key],
		}
		for _, v := range prop.Enum {
			arg.Enum = append(arg.Enum, fmt.Sprint(v))
		}
		args = append(args, arg)
	}
	return args, nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

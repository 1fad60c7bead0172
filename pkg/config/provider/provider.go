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

// Package provider defines where configuration bytes come from.
package provider

import (
	"context"
	"fmt"
	"sync"
)

// Type identifies the config source type.
type Type string

const (
	TypeFile   Type = "file"
	TypeStatic Type = "static"
)

// Provider abstracts config sources. Implementations must be safe for
// concurrent use.
type Provider interface {
	Type() Type

	// Load reads raw config bytes from the source.
	Load(ctx context.Context) ([]byte, error)

	// Watch signals on the returned channel whenever the config changes.
	// A nil channel means the source cannot be watched.
	Watch(ctx context.Context) (<-chan struct{}, error)

	Close() error
}

// StaticProvider serves config held in memory. Update replaces the bytes and
// notifies any watcher.
type StaticProvider struct {
	mu      sync.Mutex
	data    []byte
	changes chan struct{}
}

func NewStaticProvider(data []byte) *StaticProvider {
	return &StaticProvider{data: data}
}

func (p *StaticProvider) Type() Type { return TypeStatic }

func (p *StaticProvider) Load(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil, fmt.Errorf("no config data")
	}
	out := make([]byte, len(p.data))
	copy(out, p.data)
	return out, nil
}

func (p *StaticProvider) Watch(context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.changes == nil {
		p.changes = make(chan struct{}, 1)
	}
	return p.changes, nil
}

// Update swaps the held config.
func (p *StaticProvider) Update(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = data
	if p.changes != nil {
		select {
		case p.changes <- struct{}{}:
		default:
		}
	}
}

func (p *StaticProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.changes != nil {
		close(p.changes)
		p.changes = nil
	}
	return nil
}

var _ Provider = (*StaticProvider)(nil)

// Package registry maps component ids to constructors configured from
// raw JSON.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownComponent = errors.New("unknown component")

type ComponentCreator[C any, P any] func(config json.RawMessage, provider P) (C, error)

type Registry[C any, P any] struct {
	components map[string]ComponentCreator[C, P]
	provider   P
}

func NewRegistry[C any, P any](provider P) *Registry[C, P] {
	return &Registry[C, P]{
		provider:   provider,
		components: make(map[string]ComponentCreator[C, P]),
	}
}

// Register panics on duplicate ids.
func (r *Registry[C, P]) Register(id string, creator ComponentCreator[C, P]) {
	if _, ok := r.components[id]; ok {
		panic(fmt.Sprintf("component %q already registered", id))
	}
	r.components[id] = creator
}

func (r *Registry[C, P]) IDs() []string {
	ids := make([]string, 0, len(r.components))
	for id := range r.components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry[C, P]) New(id string, config json.RawMessage) (C, error) {
	creator, ok := r.components[id]
	if !ok {
		var component C
		return component, fmt.Errorf("%q (known: %v): %w", id, r.IDs(), ErrUnknownComponent)
	}
	c, err := creator(config, r.provider)
	if err != nil {
		return c, fmt.Errorf("failed to create %s: %w", id, err)
	}
	return c, nil
}

package channel

import (
	"fmt"
	"sort"
)

// registry holds the single live proxy for each remote identity.
type registry struct {
	objects map[string]*Object
}

func newRegistry() *registry {
	return &registry{objects: make(map[string]*Object)}
}

func (r *registry) get(id string) (*Object, bool) {
	obj, ok := r.objects[id]
	return obj, ok
}

func (r *registry) add(obj *Object) error {
	if _, exists := r.objects[obj.id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, obj.id)
	}
	r.objects[obj.id] = obj
	return nil
}

// removeIf deletes obj's identity only while it still maps to obj.
func (r *registry) removeIf(obj *Object) bool {
	if current, ok := r.objects[obj.id]; ok && current == obj {
		delete(r.objects, obj.id)
		return true
	}
	return false
}

// registered reports whether obj is the live proxy for its identity.
func (r *registry) registered(obj *Object) bool {
	current, ok := r.objects[obj.id]
	return ok && current == obj
}

// all returns every proxy ordered by identity.
func (r *registry) all() []*Object {
	out := make([]*Object, 0, len(r.objects))
	for _, obj := range r.objects {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// drain empties the registry and returns what it held.
func (r *registry) drain() []*Object {
	out := r.all()
	r.objects = make(map[string]*Object)
	return out
}

func (r *registry) len() int {
	return len(r.objects)
}

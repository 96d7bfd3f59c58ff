package plugin

import "sort"

// Registry holds a named set of plugins. It is immutable after Build.
type Registry struct {
	plugins map[string]Plugin
}

// Get returns the plugin with the given name, or nil.
func (r *Registry) Get(name string) Plugin {
	return r.plugins[name]
}

// All returns every plugin ordered by name.
func (r *Registry) All() []Plugin {
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int { return len(r.plugins) }

// FindForTask returns the plugins claiming the task, ordered by name.
func (r *Registry) FindForTask(task string) []Plugin {
	var out []Plugin
	for _, p := range r.All() {
		if p.CanHandle(task) {
			out = append(out, p)
		}
	}
	return out
}

// Builder accumulates plugins during construction. Call Build to
// produce an immutable Registry.
type Builder struct {
	plugins map[string]Plugin
}

// NewBuilder returns a fresh Builder.
func NewBuilder() *Builder {
	return &Builder{plugins: make(map[string]Plugin)}
}

// With adds a plugin and returns the builder, enabling chaining.
// A later plugin with the same name replaces the earlier one.
func (b *Builder) With(p Plugin) *Builder {
	b.plugins[p.Name()] = p
	return b
}

// Build produces an immutable Registry from the accumulated plugins.
func (b *Builder) Build() *Registry {
	plugins := make(map[string]Plugin, len(b.plugins))
	for k, v := range b.plugins {
		plugins[k] = v
	}
	return &Registry{plugins: plugins}
}

package avdl

import (
	"fmt"
)

// Registry is a full-name → NamedSchema lookup table, built once per
// protocol (or per standalone main schema) before resolution begins (spec
// §4.5: "the protocol's declared-names table").
type Registry struct {
	byName map[string]NamedSchema
	order  []string
}

// NewRegistry builds a Registry from a protocol's declared types, reporting
// a fatal diagnostic for any duplicate full name (spec §3: "Two named types
// with identical full names may not coexist in one protocol").
func NewRegistry(types []NamedSchema, diags *Diagnostics, span SourceSpan) *Registry {
	r := &Registry{byName: map[string]NamedSchema{}}
	for _, t := range types {
		full := t.FullName()
		if _, dup := r.byName[full]; dup {
			diags.Error(span, full, "duplicate named type %q in protocol", full)
			continue
		}
		r.byName[full] = t
		r.order = append(r.order, full)
	}
	return r
}

// Lookup finds a named schema by full name.
func (r *Registry) Lookup(fullName string) (NamedSchema, bool) {
	s, ok := r.byName[fullName]
	return s, ok
}

// Suggest returns the closest full name to target by Levenshtein distance,
// for the resolver's "did you mean …?" diagnostic (spec §4.5), or "" if the
// registry is empty.
func (r *Registry) Suggest(target string) string {
	best := ""
	bestDist := -1
	for _, full := range r.order {
		d := levenshtein(target, full)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = full
		}
	}
	return best
}

func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Resolve walks every schema reachable from the protocol's types and
// messages, replacing each *Reference with the NamedSchema it names (spec
// §4.5). It is cycle-safe: a named type is only ever substituted once per
// reference *site* (not per schema instance reachable through it), so a
// record that refers to itself or to a mutually-recursive partner still
// terminates — the walk simply stops recursing once it reaches a node it
// has already visited via the visited-by-pointer-identity guard.
func Resolve(p *Protocol, reg *Registry, diags *Diagnostics) {
	visited := map[Schema]bool{}

	resolveOne := func(s Schema) Schema {
		return resolveSchema(s, reg, diags, visited)
	}

	for _, t := range p.Types() {
		resolveNamed(t, reg, diags, visited)
	}
	for _, name := range p.MessageNames() {
		m := p.Message(name)
		for _, f := range m.Request() {
			f.SetType(resolveOne(f.Type()))
		}
		m.SetResponse(resolveOne(m.Response()))
		for i, errType := range m.Errors() {
			m.SetError(i, resolveOne(errType))
		}
	}
}

// resolveNamed resolves the children of a named type in place (fields of a
// record; enum/fixed have no nested schemas to resolve).
func resolveNamed(s NamedSchema, reg *Registry, diags *Diagnostics, visited map[Schema]bool) {
	rec, ok := s.(*RecordSchema)
	if !ok {
		return
	}
	if visited[rec] {
		return
	}
	visited[rec] = true
	for _, f := range rec.Fields() {
		f.SetType(resolveSchema(f.Type(), reg, diags, visited))
	}
}

// resolveSchema returns the resolved form of s, recursing into composite
// schemas and substituting any Reference it finds.
func resolveSchema(s Schema, reg *Registry, diags *Diagnostics, visited map[Schema]bool) Schema {
	switch v := s.(type) {
	case *Reference:
		full := v.FullName()
		target, ok := reg.Lookup(full)
		if !ok {
			label := ""
			if suggestion := reg.Suggest(full); suggestion != "" {
				label = fmt.Sprintf("did you mean %q?", suggestion)
			}
			diags.Error(v.Span, label, "unresolved reference to %q", full)
			return v
		}
		resolveNamed(target, reg, diags, visited)
		resolved := target.(Schema)
		if len(v.Props()) > 0 {
			// Properties attached at the reference site belong to the
			// reference site (the enclosing Field), never to the resolved
			// schema itself (spec §4.5) — the reader is responsible for
			// having already attached them to the Field; a Reference
			// carrying leftover properties here indicates the reader
			// attached them to the wrong place, so surface it loudly
			// rather than silently dropping data.
			diags.Warning(v.Span, full, "properties on reference to %q were not attached to a field", full)
		}
		return resolved
	case *RecordSchema:
		resolveNamed(v, reg, diags, visited)
		return v
	case *ArraySchema:
		if !visited[v] {
			visited[v] = true
			v.SetItems(resolveSchema(v.Items(), reg, diags, visited))
		}
		return v
	case *MapSchema:
		if !visited[v] {
			visited[v] = true
			v.SetValues(resolveSchema(v.Values(), reg, diags, visited))
		}
		return v
	case *UnionSchema:
		if !visited[v] {
			visited[v] = true
			seen := map[string]bool{}
			for i, m := range v.Types() {
				resolved := resolveSchema(m, reg, diags, visited)
				v.SetMember(i, resolved)
				key := unionTypeKey(resolved)
				if seen[key] {
					diags.Error(SourceSpan{}, key, "union has duplicate member %q after reference resolution", key)
				}
				seen[key] = true
			}
		}
		return v
	default:
		return s
	}
}

// ResolveTypes resolves a standalone set of named types plus an optional
// main schema (the non-protocol idlFile form, spec §4.2's "schema" leading
// declaration) against a registry built from those same types, returning
// the resolved form of main.
func ResolveTypes(types []NamedSchema, main Schema, diags *Diagnostics) Schema {
	reg := NewRegistry(types, diags, SourceSpan{})
	visited := map[Schema]bool{}
	for _, t := range types {
		resolveNamed(t, reg, diags, visited)
	}
	if main == nil {
		return nil
	}
	return resolveSchema(main, reg, diags, visited)
}

// unresolvedReferences returns every Reference still reachable from the
// protocol's types and messages, i.e. the P4 condition ("after resolution
// succeeds, no Reference is reachable"). Nothing in the module calls it.
func unresolvedReferences(p *Protocol) []*Reference {
	var out []*Reference
	visited := map[Schema]bool{}
	var walk func(Schema)
	walk = func(s Schema) {
		if s == nil || visited[s] {
			return
		}
		visited[s] = true
		switch v := s.(type) {
		case *Reference:
			out = append(out, v)
		case *RecordSchema:
			for _, f := range v.Fields() {
				walk(f.Type())
			}
		case *ArraySchema:
			walk(v.Items())
		case *MapSchema:
			walk(v.Values())
		case *UnionSchema:
			for _, m := range v.Types() {
				walk(m)
			}
		}
	}
	for _, t := range p.Types() {
		walk(t)
	}
	for _, name := range p.MessageNames() {
		m := p.Message(name)
		for _, f := range m.Request() {
			walk(f.Type())
		}
		walk(m.Response())
		for _, e := range m.Errors() {
			walk(e)
		}
	}
	return out
}

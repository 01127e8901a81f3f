package mqtt

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/AaronLay10/SignalGrid/internal/geom"
)

// Binding maps a friendly alias to a node position.
type Binding struct {
	Alias string   `json:"alias"`
	Pos   geom.Pos `json:"pos"`
}

// BindingRegistry resolves topic segments to node positions. A segment is
// either a bound alias or a literal "x,y,z" position.
type BindingRegistry struct {
	mu      sync.RWMutex
	aliases map[string]geom.Pos
}

// NewBindingRegistry creates a new empty binding registry.
func NewBindingRegistry() *BindingRegistry {
	return &BindingRegistry{
		aliases: make(map[string]geom.Pos),
	}
}

// Bind adds or replaces an alias. Aliases may not contain MQTT topic
// separators or wildcards.
func (r *BindingRegistry) Bind(alias string, p geom.Pos) error {
	if alias == "" || strings.ContainsAny(alias, "/+#,") {
		return fmt.Errorf("invalid alias %q", alias)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = p
	return nil
}

// Unbind removes an alias.
func (r *BindingRegistry) Unbind(alias string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.aliases, alias)
}

// Get returns the position bound to alias.
func (r *BindingRegistry) Get(alias string) (geom.Pos, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.aliases[alias]
	return p, ok
}

// Resolve turns a topic segment into a position.
func (r *BindingRegistry) Resolve(segment string) (geom.Pos, error) {
	if p, ok := r.Get(segment); ok {
		return p, nil
	}
	p, err := geom.ParsePos(segment)
	if err != nil {
		return geom.Pos{}, fmt.Errorf("unknown node %q: not an alias or position", segment)
	}
	return p, nil
}

// AliasFor returns the first alias (in name order) bound to p.
func (r *BindingRegistry) AliasFor(p geom.Pos) (string, bool) {
	for _, b := range r.All() {
		if b.Pos == p {
			return b.Alias, true
		}
	}
	return "", false
}

// All returns every binding ordered by alias.
func (r *BindingRegistry) All() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Binding, 0, len(r.aliases))
	for a, p := range r.aliases {
		result = append(result, Binding{Alias: a, Pos: p})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Alias < result[j].Alias })
	return result
}

// Load binds every alias of m, where values use the "x,y,z" form. All
// entries are checked before any is applied.
func (r *BindingRegistry) Load(m map[string]string) error {
	parsed := make(map[string]geom.Pos, len(m))
	for alias, s := range m {
		p, err := geom.ParsePos(s)
		if err != nil {
			return fmt.Errorf("binding %s: %w", alias, err)
		}
		if alias == "" || strings.ContainsAny(alias, "/+#,") {
			return fmt.Errorf("invalid alias %q", alias)
		}
		parsed[alias] = p
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for a, p := range parsed {
		r.aliases[a] = p
	}
	return nil
}

// Clear removes all bindings.
func (r *BindingRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases = make(map[string]geom.Pos)
}

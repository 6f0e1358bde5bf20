package options

import (
	"fmt"

	"github.com/meshkit/netbench/internal/counters"
)

// Sourced is implemented by flow-like owners. The resolver consults the
// advertised source owner between the group tier and the flow tier, so a
// value set on a flow always beats one set on its source core.
type Sourced interface {
	OptionSource() any
}

// ScopeError reports an option set at a scope it does not admit.
type ScopeError struct {
	Option Option
	Scope  string
}

func (e ScopeError) Error() string {
	if metas[e.Option].globalOnly {
		return fmt.Sprintf("options: %s is global-only, cannot be set at %s scope", e.Option, e.Scope)
	}
	return fmt.Sprintf("options: %s cannot be set at %s scope", e.Option, e.Scope)
}

// ValueError reports a value whose shape does not match the option's kind.
type ValueError struct {
	Option Option
	Reason string
}

func (e ValueError) Error() string {
	return fmt.Sprintf("options: bad value for %s: %s", e.Option, e.Reason)
}

type scopeKey struct {
	group any
	owner any
}

// Resolver stores option values per (group, owner) scope pair and resolves
// the effective value for any scope through the fallback chain
// global -> group -> owner -> group+owner. Resolution is pure; identical
// inputs always produce identical outputs.
type Resolver struct {
	global map[Option]any
	scoped map[Option]map[scopeKey]any
}

func NewResolver() *Resolver {
	r := &Resolver{
		global: make(map[Option]any, numOptions),
		scoped: make(map[Option]map[scopeKey]any),
	}
	for o := Option(0); o < numOptions; o++ {
		r.global[o] = metas[o].def
	}
	return r
}

// Set records v for opt at the scope named by (group, owner); both nil
// means the global tier. The value is validated against the option's kind
// and the scope against its class before anything is stored.
func (r *Resolver) Set(opt Option, v any, group, owner any) error {
	m := metas[opt]
	nv, err := normalize(m.kind, v)
	if err != nil {
		return ValueError{Option: opt, Reason: err.Error()}
	}
	if group == nil && owner == nil {
		r.global[opt] = nv
		return nil
	}
	if m.globalOnly {
		return ScopeError{Option: opt, Scope: describeScope(group, owner)}
	}
	if owner != nil {
		if _, flowLike := owner.(Sourced); flowLike {
			if !m.perFlow {
				return ScopeError{Option: opt, Scope: describeScope(group, owner)}
			}
		} else if !m.perCore {
			return ScopeError{Option: opt, Scope: describeScope(group, owner)}
		}
	}
	sc := r.scoped[opt]
	if sc == nil {
		sc = make(map[scopeKey]any)
		r.scoped[opt] = sc
	}
	sc[scopeKey{group: group, owner: owner}] = nv
	return nil
}

// Get resolves the effective value of opt for (group, owner). A flow-like
// owner inherits through its source before its own exceptions apply.
func (r *Resolver) Get(opt Option, group, owner any) any {
	v := r.global[opt]
	if metas[opt].globalOnly {
		return v
	}
	sc := r.scoped[opt]
	if sc == nil {
		return v
	}
	pick := func(g, o any) {
		if x, ok := sc[scopeKey{group: g, owner: o}]; ok {
			v = x
		}
	}
	if group != nil {
		pick(group, nil)
	}
	if owner != nil {
		if s, ok := owner.(Sourced); ok {
			src := s.OptionSource()
			pick(nil, src)
			if group != nil {
				pick(group, src)
			}
		}
		pick(nil, owner)
		if group != nil {
			pick(group, owner)
		}
	}
	return v
}

func describeScope(group, owner any) string {
	switch {
	case group != nil && owner != nil:
		return "group+" + ownerKind(owner)
	case group != nil:
		return "group"
	default:
		return ownerKind(owner)
	}
}

func ownerKind(owner any) string {
	if _, ok := owner.(Sourced); ok {
		return "flow"
	}
	return "core"
}

// Float resolves opt as a float64. Only valid for KindFloat options.
func (r *Resolver) Float(opt Option, group, owner any) float64 {
	return r.Get(opt, group, owner).(float64)
}

// Bool resolves opt as a bool. Only valid for KindBool options.
func (r *Resolver) Bool(opt Option, group, owner any) bool {
	return r.Get(opt, group, owner).(bool)
}

// Uint resolves opt as a uint32. Only valid for KindUint options.
func (r *Resolver) Uint(opt Option, group, owner any) uint32 {
	return r.Get(opt, group, owner).(uint32)
}

// OptUint resolves an optional-uint option; nil means unset.
func (r *Resolver) OptUint(opt Option, group, owner any) *uint32 {
	v := r.Get(opt, group, owner)
	if v == nil {
		return nil
	}
	u := v.(uint32)
	return &u
}

// OptFloat resolves an optional-float option; nil means unset.
func (r *Resolver) OptFloat(opt Option, group, owner any) *float64 {
	v := r.Get(opt, group, owner)
	if v == nil {
		return nil
	}
	f := v.(float64)
	return &f
}

// RecordedCounters lists the counters the experiment will record, in
// ascending bit order: every enabled record flag plus the permanent ones.
func (r *Resolver) RecordedCounters() []counters.Counter {
	var out []counters.Counter
	for _, c := range counters.All() {
		if c.PermanentCounter() {
			out = append(out, c)
			continue
		}
		opt, ok := ForCounter(c)
		if ok && r.Bool(opt, nil, nil) {
			out = append(out, c)
		}
	}
	return out
}

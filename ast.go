package grako

import "strings"

// Value is whatever a rule produces: the matched text of a token or
// pattern, a []Value list (closures, joins, CST groups), a *Frame
// (named captures), or any value a semantic method chooses to
// substitute in its place — including nil, which the engine treats
// as an intentional discard. Keeping this as `any` rather than a
// closed sum type mirrors the host language's dynamic AST values the
// original grammar-model spec assumes; Go has no clean way to make a
// sum type that both scalars and arbitrary semantic-substituted
// values belong to without paying for a wrapper on every token match.
type Value = any

// reservedNames are the attribute names parseinfo and the engine's
// own bookkeeping occupy on a rule's result; a capture must never be
// allowed to shadow one of these keys. "@" is deliberately not here:
// it is the Override sentinel itself (see overrideKey below), assigned
// by the engine's own overrideNode.parse, not a user capture name that
// could collide with it.
var reservedNames = map[string]struct{}{
	"parseinfo": {},
	"rule":      {},
	"pos":       {},
	"endpos":    {},
	"line":      {},
	"endline":   {},
	"buffer":    {},
}

// overrideKey is the special capture name that, when present in a
// Frame, replaces the whole frame with its value (spec §3, "Override").
const overrideKey = "@"

// rewriteReserved suffixes a capture name with "_" until it no
// longer collides with a reserved attribute name, so a grammar
// writing `pos:something` never shadows engine state.
func rewriteReserved(name string) string {
	for {
		if _, reserved := reservedNames[name]; !reserved {
			return name
		}
		name += "_"
	}
}

// Frame is an AST capture frame: an ordered mapping from capture name
// to value, with first-assignment order preserved and per-key
// force-list promotion. A second assignment to a scalar key
// auto-promotes it to a list; a key declared with forceList is always
// a list, even after a single assignment.
type Frame struct {
	order     []string
	values    map[string]Value
	forceList map[string]bool
}

func NewFrame() *Frame {
	return &Frame{values: map[string]Value{}, forceList: map[string]bool{}}
}

// Declare pre-registers name per defines() so a rule whose capture
// was never actually assigned (e.g. the optional branch of a choice
// that took the other alternative) still reports a value: an empty
// list for force-list captures, nil for scalar ones.
func (f *Frame) Declare(name string, forceList bool) {
	name = rewriteReserved(name)
	if _, ok := f.values[name]; ok {
		if forceList {
			f.forceList[name] = true
		}
		return
	}
	f.order = append(f.order, name)
	f.forceList[name] = forceList
	if forceList {
		f.values[name] = []Value{}
	} else {
		f.values[name] = nil
	}
}

// Set records last as the value captured under name. The list form
// (forceList) always appends; the scalar form sets the value on
// first assignment and auto-promotes to a list on any subsequent one.
func (f *Frame) Set(name string, last Value, forceList bool) {
	name = rewriteReserved(name)
	existing, had := f.values[name]
	if !had {
		f.order = append(f.order, name)
		if forceList {
			f.values[name] = []Value{last}
			f.forceList[name] = true
		} else {
			f.values[name] = last
		}
		return
	}

	if forceList || f.forceList[name] {
		f.forceList[name] = true
		if lst, ok := existing.([]Value); ok {
			f.values[name] = append(lst, last)
		} else {
			f.values[name] = []Value{existing, last}
		}
		return
	}

	// scalar key, second assignment: auto-promote to a list
	f.values[name] = []Value{existing, last}
	f.forceList[name] = true
}

// Get looks name up as given first (so engine attributes such as
// parseinfo are found), then under its reserved-name rewrite (so a
// capture written as `pos:...` is found as "pos").
func (f *Frame) Get(name string) (Value, bool) {
	if v, ok := f.values[name]; ok {
		return v, true
	}
	v, ok := f.values[rewriteReserved(name)]
	return v, ok
}

func (f *Frame) Has(name string) bool {
	_, ok := f.values[rewriteReserved(name)]
	return ok
}

// Keys returns capture names in first-assignment order.
func (f *Frame) Keys() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

func (f *Frame) Len() int { return len(f.order) }

// Override returns the value associated with "@" and true if this
// frame carries an override; per spec §3/§4.3, the caller must return
// this value in place of the frame itself.
func (f *Frame) Override() (Value, bool) {
	v, ok := f.values[overrideKey]
	return v, ok
}

// Merge copies every key of other into f, applying the same
// set-or-append rule Set would for each value.
func (f *Frame) Merge(other *Frame) {
	for _, k := range other.order {
		v, _ := other.values[k]
		f.Set(k, v, other.forceList[k])
	}
}

// ToMap materializes the frame as a plain map snapshot, useful for
// semantics methods and tests that want a stable view independent of
// further frame mutation. The map does not keep capture order; Keys
// does.
func (f *Frame) ToMap() map[string]Value {
	out := make(map[string]Value, len(f.order))
	for _, k := range f.order {
		out[k] = f.values[k]
	}
	return out
}

func (f *Frame) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range f.order {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(valueString(f.values[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func valueString(v Value) string {
	switch t := v.(type) {
	case string:
		return t
	case *Frame:
		return t.String()
	case []Value:
		var b strings.Builder
		b.WriteByte('[')
		for i, it := range t {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(valueString(it))
		}
		b.WriteByte(']')
		return b.String()
	case nil:
		return "None"
	default:
		return "?"
	}
}

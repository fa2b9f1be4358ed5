package jack

import (
	"github.com/pkg/errors"

	"go.novarion.dev/jacktoolchain/pkg/utils"
)

// symbolEntry is one declared identifier: its static type name ("int", "boolean",
// "Array", ...), its Kind, and the 0-based index assigned within that kind's counter.
type symbolEntry struct {
	Type  string
	Kind  Kind
	Index uint16
}

// SymbolInfo is a (name, entry) pair as returned by DumpClass/DumpSubroutine, in
// declaration order.
type SymbolInfo struct {
	Name  string
	Type  string
	Kind  Kind
	Index uint16
}

// SymbolTable is the two-level scope used while compiling one class: a class-wide table
// (STATIC and FIELD entries, alive for the whole class) and a subroutine-wide table
// (ARG and VAR entries, reset at the start of every method/function/constructor). Both
// tables preserve declaration order, which DumpClass/DumpSubroutine rely on to report
// field/local layout in a deterministic, source-order diagnostic.
type SymbolTable struct {
	class      utils.OrderedMap[string, symbolEntry]
	subroutine utils.OrderedMap[string, symbolEntry]

	counters map[Kind]uint16 // One independent 0-based counter per Kind, shared across both tables
}

// NewSymbolTable returns an empty table ready for a new class.
func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{}
	st.class = utils.NewOrderedMap[string, symbolEntry]()
	st.counters = map[Kind]uint16{}
	st.Reset()
	return st
}

// Reset clears the subroutine-scoped table and its ARG/VAR counters, keeping the
// class-scoped table (STATIC/FIELD) intact. Call this at the start of every subroutine.
func (st *SymbolTable) Reset() {
	st.subroutine = utils.NewOrderedMap[string, symbolEntry]()
	st.counters[ArgKind] = 0
	st.counters[VarKind] = 0
}

// ResetClass clears both tables and every counter, for starting a brand new class.
func (st *SymbolTable) ResetClass() {
	st.class = utils.NewOrderedMap[string, symbolEntry]()
	st.counters = map[Kind]uint16{}
	st.Reset()
}

// Define declares 'name' with the given type and kind in the table the kind belongs to
// (class table for STATIC/FIELD, subroutine table for ARG/VAR), assigning it the next
// free index for that kind. Fails if 'name' is already defined in that same table.
func (st *SymbolTable) Define(name, typ string, kind Kind) error {
	table := st.tableFor(kind)
	if _, exists := table.Get(name); exists {
		return errors.Errorf("%q already declared in this scope", name)
	}

	index := st.counters[kind]
	table.Set(name, symbolEntry{Type: typ, Kind: kind, Index: index})
	st.counters[kind] = index + 1
	return nil
}

// DumpClass returns every STATIC/FIELD entry in declaration order, for diagnostics.
func (st *SymbolTable) DumpClass() []SymbolInfo { return dumpTable(st.class) }

// DumpSubroutine returns every ARG/VAR entry in declaration order, for diagnostics.
func (st *SymbolTable) DumpSubroutine() []SymbolInfo { return dumpTable(st.subroutine) }

func dumpTable(table utils.OrderedMap[string, symbolEntry]) []SymbolInfo {
	names, entries := table.Keys(), table.Entries()
	out := make([]SymbolInfo, 0, table.Size())
	for i, name := range names {
		entry := entries[i]
		out = append(out, SymbolInfo{Name: name, Type: entry.Type, Kind: entry.Kind, Index: entry.Index})
	}
	return out
}

// Count returns the number of entries currently declared under 'kind'.
func (st *SymbolTable) Count(kind Kind) uint16 { return st.counters[kind] }

// KindOf, TypeOf and IndexOf all resolve 'name' via the subroutine-shadows-class lookup
// order and fail with "unknown identifier" if it is declared in neither table.
func (st *SymbolTable) KindOf(name string) (Kind, error) {
	e, err := st.resolve(name)
	if err != nil {
		return NoKind, err
	}
	return e.Kind, nil
}

func (st *SymbolTable) TypeOf(name string) (string, error) {
	e, err := st.resolve(name)
	if err != nil {
		return "", err
	}
	return e.Type, nil
}

func (st *SymbolTable) IndexOf(name string) (uint16, error) {
	e, err := st.resolve(name)
	if err != nil {
		return 0, err
	}
	return e.Index, nil
}

// Has reports whether 'name' resolves in either table, without failing otherwise.
func (st *SymbolTable) Has(name string) bool {
	_, err := st.resolve(name)
	return err == nil
}

// resolve tries the subroutine table first, then the class table, matching the priority
// a caller needs to tell a local/parameter shadowing a same-named field apart.
func (st *SymbolTable) resolve(name string) (symbolEntry, error) {
	if e, ok := st.subroutine.Get(name); ok {
		return e, nil
	}
	if e, ok := st.class.Get(name); ok {
		return e, nil
	}
	return symbolEntry{}, errors.Errorf("unknown identifier %q", name)
}

func (st *SymbolTable) tableFor(kind Kind) *utils.OrderedMap[string, symbolEntry] {
	switch kind {
	case StaticKind, FieldKind:
		return &st.class
	default:
		return &st.subroutine
	}
}

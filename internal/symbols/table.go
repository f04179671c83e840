package symbols

import (
	"fmt"
	"strings"
	"sync"
)

// Table caches uploaded symbols and data types, keyed case-insensitively
// (the PLC compares names case-insensitively). The AllSymbols/AllDataTypes
// flags record whether the cache holds a full enumeration or only
// individually fetched entries.
type Table struct {
	mu           sync.RWMutex
	symbols      map[string]*Symbol
	dataTypes    map[string]*DataType
	allSymbols   bool
	allDataTypes bool
}

// NewTable creates an empty symbol/type cache.
func NewTable() *Table {
	return &Table{
		symbols:   make(map[string]*Symbol),
		dataTypes: make(map[string]*DataType),
	}
}

func key(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "."))
}

// SetSymbols replaces the symbol cache with a full enumeration.
func (t *Table) SetSymbols(syms []*Symbol) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.symbols = make(map[string]*Symbol, len(syms))
	for _, sym := range syms {
		t.symbols[key(sym.Name)] = sym
	}
	t.allSymbols = true
}

// PutSymbol caches one individually fetched symbol.
func (t *Table) PutSymbol(sym *Symbol) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.symbols[key(sym.Name)] = sym
}

// Symbol returns the cached symbol with the given name, or nil.
func (t *Table) Symbol(name string) *Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.symbols[key(name)]
}

// Symbols returns all cached symbols and whether the cache holds a full
// enumeration.
func (t *Table) Symbols() ([]*Symbol, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	syms := make([]*Symbol, 0, len(t.symbols))
	for _, sym := range t.symbols {
		syms = append(syms, sym)
	}
	return syms, t.allSymbols
}

// FindSymbols returns symbols whose name contains pattern (case-insensitive).
func (t *Table) FindSymbols(pattern string) []*Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pattern = strings.ToLower(pattern)
	var matches []*Symbol
	for name, sym := range t.symbols {
		if strings.Contains(name, pattern) {
			matches = append(matches, sym)
		}
	}
	return matches
}

// SetDataTypes replaces the data-type cache with a full enumeration.
func (t *Table) SetDataTypes(types []*DataType) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dataTypes = make(map[string]*DataType, len(types))
	for _, dt := range types {
		t.dataTypes[key(dt.Name)] = dt
	}
	t.allDataTypes = true
}

// PutDataType caches one individually fetched data-type declaration.
func (t *Table) PutDataType(dt *DataType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dataTypes[key(dt.Name)] = dt
}

// DataType returns the cached declaration with the given name, or nil.
func (t *Table) DataType(name string) *DataType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dataTypes[key(name)]
}

// DataTypes returns all cached declarations and whether the cache holds a
// full enumeration.
func (t *Table) DataTypes() ([]*DataType, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	types := make([]*DataType, 0, len(t.dataTypes))
	for _, dt := range t.dataTypes {
		types = append(types, dt)
	}
	return types, t.allDataTypes
}

// HasAllSymbols reports whether the symbol cache is a full enumeration.
func (t *Table) HasAllSymbols() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allSymbols
}

// HasAllDataTypes reports whether the type cache is a full enumeration.
func (t *Table) HasAllDataTypes() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allDataTypes
}

// Clear drops both caches; called when the PLC symbol version changes.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.symbols = make(map[string]*Symbol)
	t.dataTypes = make(map[string]*DataType)
	t.allSymbols = false
	t.allDataTypes = false
}

// Stats returns cache entry counts for diagnostics.
func (t *Table) Stats() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fmt.Sprintf("%d symbols (full=%v), %d data types (full=%v)",
		len(t.symbols), t.allSymbols, len(t.dataTypes), t.allDataTypes)
}

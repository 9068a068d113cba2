package layout

import "github.com/llir/llvm/ir/types"

// Registry is the per-module owning store of StructInfo. Every original
// struct type and every inflated struct name resolves, through this single
// store, to the same *StructInfo (shared ownership, per spec §9).
type Registry struct {
	byOriginal     map[*types.StructType]*StructInfo
	byInflatedName map[string]*StructInfo
	byName         map[string]*StructInfo
	order          []*StructInfo
	redzoneSize    int
}

func newRegistry(redzoneSize int) *Registry {
	return &Registry{
		byOriginal:     make(map[*types.StructType]*StructInfo),
		byInflatedName: make(map[string]*StructInfo),
		byName:         make(map[string]*StructInfo),
		redzoneSize:    redzoneSize,
	}
}

func (r *Registry) register(si *StructInfo) {
	r.byOriginal[si.OriginalType] = si
	r.byInflatedName[si.Name+InflatedSuffix] = si
	r.byName[si.Name] = si
	r.order = append(r.order, si)
}

// Lookup resolves a StructInfo from the original struct type.
func (r *Registry) Lookup(t *types.StructType) (*StructInfo, bool) {
	si, ok := r.byOriginal[t]
	return si, ok
}

// LookupByName resolves a StructInfo by the original struct's declared
// name, used while the deep pass breaks self-reference cycles.
func (r *Registry) LookupByName(name string) (*StructInfo, bool) {
	si, ok := r.byName[name]
	return si, ok
}

// LookupInflated resolves a StructInfo from the inflated type's name.
func (r *Registry) LookupInflated(name string) (*StructInfo, bool) {
	si, ok := r.byInflatedName[name]
	return si, ok
}

// All returns every StructInfo in discovery order.
func (r *Registry) All() []*StructInfo {
	return r.order
}

// RedzoneSize is the configured REDZONE_SIZE for this registry.
func (r *Registry) RedzoneSize() int {
	return r.redzoneSize
}

package schema

import (
	"strings"

	"github.com/yanun0323/errors"
)

// Scale is the number of decimal places of a scaled quantity: with Scale=2 the integer
// 125 stands for 1.25 units.
type Scale int32

// MaxScale bounds the quantity scale a symbol may declare.
const MaxScale Scale = 18

type VenueID uint16

type SymbolID uint32

var (
	ErrEmptyName     = errors.New("registry: name is empty")
	ErrDuplicateName = errors.New("registry: name already registered")
	ErrUnknownVenue  = errors.New("registry: unknown venue")
	ErrInvalidScale  = errors.New("registry: invalid quantity scale")
)

// Venue is the simulated or live market a symbol trades on.
type Venue struct {
	ID   VenueID
	Name string
}

// Symbol is a tradable instrument and the scale its order quantities are expressed in.
type Symbol struct {
	ID            SymbolID
	VenueID       VenueID
	Name          string
	QuantityScale Scale
}

// Registry is the set of instruments orders may name. It is filled once from config and
// only read afterwards, so lookups take no lock. A nil *Registry is empty.
type Registry struct {
	venues  []Venue
	symbols []Symbol
	byName  map[string]int
	venueOf map[string]VenueID
}

func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]int),
		venueOf: make(map[string]VenueID),
	}
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

// AddVenue registers a venue. Venue ids start at 1.
func (r *Registry) AddVenue(name string) (VenueID, error) {
	name = normalizeName(name)
	if name == "" {
		return 0, ErrEmptyName
	}
	if id, ok := r.venueOf[name]; ok {
		return id, errors.Wrapf(ErrDuplicateName, "venue %s", name)
	}

	id := VenueID(len(r.venues) + 1)
	r.venues = append(r.venues, Venue{ID: id, Name: name})
	r.venueOf[name] = id
	return id, nil
}

// AddSymbol registers an instrument on a known venue. Symbol ids start at 1.
func (r *Registry) AddSymbol(name string, venueID VenueID, scale Scale) (SymbolID, error) {
	name = normalizeName(name)
	switch {
	case name == "":
		return 0, ErrEmptyName
	case scale < 0 || scale > MaxScale:
		return 0, errors.Wrapf(ErrInvalidScale, "symbol %s, scale %d", name, scale)
	}
	if _, ok := r.Venue(venueID); !ok {
		return 0, errors.Wrapf(ErrUnknownVenue, "symbol %s, venue %d", name, venueID)
	}
	if idx, ok := r.byName[name]; ok {
		return r.symbols[idx].ID, errors.Wrapf(ErrDuplicateName, "symbol %s", name)
	}

	sym := Symbol{
		ID:            SymbolID(len(r.symbols) + 1),
		VenueID:       venueID,
		Name:          name,
		QuantityScale: scale,
	}
	r.byName[name] = len(r.symbols)
	r.symbols = append(r.symbols, sym)
	return sym.ID, nil
}

func (r *Registry) Venue(id VenueID) (Venue, bool) {
	if r == nil || id == 0 || int(id) > len(r.venues) {
		return Venue{}, false
	}
	return r.venues[id-1], true
}

// Symbol looks an instrument up by the name orders carry.
func (r *Registry) Symbol(name string) (Symbol, bool) {
	if r == nil {
		return Symbol{}, false
	}
	idx, ok := r.byName[normalizeName(name)]
	if !ok {
		return Symbol{}, false
	}
	return r.symbols[idx], true
}

// Scale returns the quantity scale of a symbol, or 0 when the symbol is unknown.
func (r *Registry) Scale(name string) Scale {
	sym, _ := r.Symbol(name)
	return sym.QuantityScale
}

func (r *Registry) SymbolCount() int {
	if r == nil {
		return 0
	}
	return len(r.symbols)
}

// SymbolNames returns the registered names in registration order.
func (r *Registry) SymbolNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.symbols))
	for i, sym := range r.symbols {
		names[i] = sym.Name
	}
	return names
}

// Package finder combines the tile pyramid and the exact polygons index.
//
// The reduced polygons dataset leaves thin areas along borders not covered by any timezone,
// to route around them the query point is shifted on a small grid of offsets until an index answers.
// For each offset the fuzzy index is asked first then the exact one:
// (fuzzy, o0) > (exact, o0) > (fuzzy, o1) > (exact, o1) ...
package finder

import (
	"github.com/akhenakh/insidetz"
	"github.com/akhenakh/insidetz/geometry"
	"github.com/akhenakh/insidetz/index/exactindex"
	"github.com/akhenakh/insidetz/index/fuzzyindex"
)

// Offset is added to the query point in degrees.
type Offset struct {
	DLng, DLat float64
}

// DefaultOffsets the 3x3 grid, longitude deltas in the outer loop,
// latitude deltas in the inner loop, (0, 0) first.
var DefaultOffsets = grid([]float64{0, -0.001, 0.001})

func grid(deltas []float64) []Offset {
	offsets := make([]Offset, 0, len(deltas)*len(deltas))
	for _, dlng := range deltas {
		for _, dlat := range deltas {
			offsets = append(offsets, Offset{DLng: dlng, DLat: dlat})
		}
	}

	return offsets
}

// Source tells which index resolved a query.
type Source int

const (
	SourceNone Source = iota
	SourceFuzzy
	SourceExact
)

func (s Source) String() string {
	switch s {
	case SourceFuzzy:
		return "fuzzy"
	case SourceExact:
		return "exact"
	default:
		return "none"
	}
}

// Resolution is the outcome of a query.
type Resolution struct {
	Names  []string
	Source Source
	Offset Offset
	// Probe is the position of Offset in the grid, -1 when nothing matched
	Probe int
}

// ExactIndex is the precise index, it also describes the dataset.
type ExactIndex interface {
	insidetz.Index
	TimezoneNames() []string
	DataVersion() string
}

// DefaultFinder resolves points with the fuzzy index then the exact one on a grid of offsets.
// It holds no mutable state and is safe for concurrent use.
type DefaultFinder struct {
	fuzzy   insidetz.Index
	exact   ExactIndex
	offsets []Offset
}

// Option configures a DefaultFinder.
type Option func(*DefaultFinder)

// WithOffsets replaces DefaultOffsets, offsets are probed in order.
func WithOffsets(offsets []Offset) Option {
	return func(f *DefaultFinder) {
		f.offsets = append([]Offset(nil), offsets...)
	}
}

func New(fuzzy insidetz.Index, exact ExactIndex, opts ...Option) *DefaultFinder {
	f := &DefaultFinder{
		fuzzy:   fuzzy,
		exact:   exact,
		offsets: DefaultOffsets,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// NewFromStorage builds both indexes from decoded snapshots.
func NewFromStorage(tzs *insidetz.TimezonesStorage, pre *insidetz.PreindexStorage, opts ...Option) (*DefaultFinder, error) {
	exact, err := exactindex.New(tzs)
	if err != nil {
		return nil, err
	}

	fuzzy, err := fuzzyindex.New(pre)
	if err != nil {
		return nil, err
	}

	return New(fuzzy, exact, opts...), nil
}

// GetName returns the best timezone name for lng, lat, false if no index matched after every offset.
func (f *DefaultFinder) GetName(lng, lat float64) (string, bool) {
	for _, o := range f.offsets {
		p := geometry.Point{Lng: lng + o.DLng, Lat: lat + o.DLat}
		if name, ok := f.fuzzy.LookupFirst(p); ok {
			return name, true
		}
		if name, ok := f.exact.LookupFirst(p); ok {
			return name, true
		}
	}

	return "", false
}

// GetNames returns every timezone name found at the resolving offset.
func (f *DefaultFinder) GetNames(lng, lat float64) []string {
	return f.Resolve(lng, lat).Names
}

// Resolve returns the names found at the first resolving probe and where they come from.
func (f *DefaultFinder) Resolve(lng, lat float64) Resolution {
	for i, o := range f.offsets {
		p := geometry.Point{Lng: lng + o.DLng, Lat: lat + o.DLat}
		if names := f.fuzzy.LookupAll(p); len(names) > 0 {
			return Resolution{Names: names, Source: SourceFuzzy, Offset: o, Probe: i}
		}
		if names := f.exact.LookupAll(p); len(names) > 0 {
			return Resolution{Names: names, Source: SourceExact, Offset: o, Probe: i}
		}
	}

	return Resolution{Source: SourceNone, Probe: -1}
}

// TimezoneNames returns every timezone name of the exact index.
func (f *DefaultFinder) TimezoneNames() []string {
	return f.exact.TimezoneNames()
}

// DataVersion returns the exact index data version.
func (f *DefaultFinder) DataVersion() string {
	return f.exact.DataVersion()
}

// Package weight models the "to_add" polymorphism from design note §9:
// observations can be weighted either by a plain scalar count, or by an
// opaque list of contributors (used when a caller wants to know not just
// how many observations landed in a bin, but which follower edges did).
// Both are modeled uniformly as a semi-ring element with Add and Count.
package weight

// Weight is a semi-ring element: it can be combined with Add, and reduced to
// a float64 count with Count (the scalar value itself, or the length of the
// contributor list).
type Weight interface {
	Add(Weight) Weight
	Count() float64
	IsZero() bool
}

// Scalar is the default weight: a plain observation count.
type Scalar float64

// One is the default weight of a single observation.
const One Scalar = 1

func (s Scalar) Add(o Weight) Weight {
	return s + o.(Scalar)
}

func (s Scalar) Count() float64 { return float64(s) }

func (s Scalar) IsZero() bool { return s == 0 }

// List weights observations by an opaque list of contributors (e.g. the
// follower edges of every path that produced the observation), used when a
// downstream consumer needs to recover which paths contributed, not merely
// how many.
type List []interface{}

func (l List) Add(o Weight) Weight {
	return append(append(List{}, l...), o.(List)...)
}

func (l List) Count() float64 { return float64(len(l)) }

func (l List) IsZero() bool { return len(l) == 0 }

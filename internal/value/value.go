// Package value implements the typed observed-value domain from spec.md
// §3/§4.2 (ValueDomain): a tagged variant over {void, bool, pointer-nullness,
// int-range}, parsed from the trace-log wire format in spec.md §6. Grounded
// on original_source/analysis/value_parser.py.
package value

import (
	"strconv"
	"strings"

	"github.com/autoepex/autoepex/internal/diag"
	"github.com/autoepex/autoepex/internal/rng"
	"github.com/autoepex/autoepex/internal/weight"
)

// Kind tags the four return-value domains named in spec.md §3.
type Kind byte

const (
	Void    Kind = 'V'
	Bool    Kind = 'B'
	Pointer Kind = 'P'
	Integer Kind = 'I'
)

func (k Kind) String() string { return string(rune(k)) }

// UnknownLabel is the wildcard histogram key meaning "any value", used both
// as the emitted label for an unconstrained bool/pointer/integer observation
// and as the special key value.Overlaps always matches.
const UnknownLabel = "u"

// BoolState is a bool observation: known-true, known-false, or unknown
// (either because the checker couldn't determine it, or a merge of both).
type BoolState int

const (
	BoolFalse BoolState = iota
	BoolTrue
	BoolUnknown
)

var boolCompact = map[BoolState]string{BoolTrue: "t", BoolFalse: "f", BoolUnknown: "u"}
var boolCompactReverse = map[string]BoolState{"t": BoolTrue, "f": BoolFalse, "u": BoolUnknown}
var boolVerbose = map[string]BoolState{"true": BoolTrue, "false": BoolFalse, "trueorfalse": BoolUnknown}

// PointerState is a pointer-nullness observation.
type PointerState int

const (
	PtrNull PointerState = iota
	PtrNotNull
	PtrUnknown
)

var ptrCompact = map[PointerState]string{PtrNotNull: "m", PtrNull: "n", PtrUnknown: "u"}
var ptrCompactReverse = map[string]PointerState{"m": PtrNotNull, "n": PtrNull, "u": PtrUnknown}
var ptrVerbose = map[string]PointerState{
	"notnull": PtrNotNull, "null": PtrNull,
	"nullornotnull": PtrUnknown, "notnullornull": PtrUnknown,
}

// Value is a tagged observation, carrying an optional symbol tag (spec.md
// §3: "a string identifying the symbolic source of the value") and a
// weight used for counting.
type Value struct {
	Kind      Kind
	Symbol    string
	HasSymbol bool
	Weight    weight.Weight

	Bool    BoolState
	Pointer PointerState

	// Range is nil when the integer value is unconstrained ("u"); otherwise
	// it names the exact or set-valued range this observation fell in.
	Range *rng.List
}

func NewVoid(w weight.Weight) *Value {
	return &Value{Kind: Void, Weight: w}
}

func NewBool(symbol string, hasSymbol bool, b BoolState, w weight.Weight) *Value {
	return &Value{Kind: Bool, Symbol: symbol, HasSymbol: hasSymbol, Bool: b, Weight: w}
}

func NewPointer(symbol string, hasSymbol bool, p PointerState, w weight.Weight) *Value {
	return &Value{Kind: Pointer, Symbol: symbol, HasSymbol: hasSymbol, Pointer: p, Weight: w}
}

func NewInt(symbol string, hasSymbol bool, r *rng.List, w weight.Weight) *Value {
	return &Value{Kind: Integer, Symbol: symbol, HasSymbol: hasSymbol, Range: r, Weight: w}
}

// IsUnknown reports whether this observation carries no constraint at all.
func (v *Value) IsUnknown() bool {
	switch v.Kind {
	case Bool:
		return v.Bool == BoolUnknown
	case Pointer:
		return v.Pointer == PtrUnknown
	case Integer:
		return v.Range == nil
	default:
		return false
	}
}

// IsExactly reports whether this is an integer observation pinned to a
// single value n. Non-integer kinds are never "exactly" anything —
// PerProgramAggregator only calls this on a caller's return value, which
// for this system is always the program's integer exit status.
func (v *Value) IsExactly(n int64) bool {
	if v.Kind != Integer || v.Range == nil {
		return false
	}
	return v.Range.IsExactly(n)
}

// GetKey returns the histogram label for this observation: the compact
// letter for bool/pointer, "u" or a range short-string for integer, "" for
// void.
func (v *Value) GetKey() string {
	switch v.Kind {
	case Void:
		return ""
	case Bool:
		return boolCompact[v.Bool]
	case Pointer:
		return ptrCompact[v.Pointer]
	case Integer:
		if v.Range == nil {
			return UnknownLabel
		}
		return v.Range.ShortStr()
	default:
		return ""
	}
}

// Overlaps reports whether this value's constraint overlaps a histogram
// label (as produced by GetKey, or the UnknownLabel wildcard).
func (v *Value) Overlaps(otherKey string) bool {
	if otherKey == UnknownLabel {
		return true
	}
	switch v.Kind {
	case Bool:
		if v.Bool == BoolUnknown {
			return true
		}
		return boolCompact[v.Bool] == otherKey
	case Pointer:
		if v.Pointer == PtrUnknown {
			return true
		}
		return ptrCompact[v.Pointer] == otherKey
	case Integer:
		if v.Range == nil {
			return true
		}
		node, err := parseRangeLabel(otherKey)
		if err != nil {
			return false
		}
		return v.Range.OverlapsSingle(node)
	default:
		return false
	}
}

// SameAssignments is the wrapping predicate from spec.md §4.2: true iff both
// sides carry a non-empty symbol tag and the tags match. Per design note
// §9's Open Question (i), observations lacking symbols are treated as
// unwrapped.
func (v *Value) SameAssignments(other *Value) bool {
	if !v.HasSymbol || !other.HasSymbol {
		return false
	}
	return v.Symbol == other.Symbol
}

// CloneNewData returns a copy of v with the same type/symbol but a
// replacement weight (and, for Integer, the same range interval re-weighted).
func (v *Value) CloneNewData(w weight.Weight) *Value {
	clone := *v
	clone.Weight = w
	if v.Kind == Integer && v.Range != nil {
		clone.Range = v.Range.CloneNewValue(w, nil)
	}
	return &clone
}

// Listify wraps v's current weight in a singleton contributor list, so that
// later additions record which contributions were made rather than only
// how many. Nothing in this repository calls it.
func (v *Value) Listify() *Value {
	return v.CloneNewData(weight.List{v.Weight})
}

// Contains reports whether v (typically a stat's accumulated range) fully
// covers other's constraint. Only meaningful for Integer; other kinds
// report containment only when exactly matching the other's key, or when v
// is fully unconstrained.
func (v *Value) Contains(other *Value) bool {
	switch v.Kind {
	case Integer:
		if v.Range == nil {
			return true
		}
		if other.Range == nil {
			return false
		}
		return v.Range.ContainsList(other.Range)
	case Void:
		return true
	default:
		return v.IsUnknown() || v.GetKey() == other.GetKey()
	}
}

func (v *Value) String() string {
	switch v.Kind {
	case Void:
		return Void.String()
	case Bool:
		return Bool.String() + boolCompact[v.Bool]
	case Pointer:
		return Pointer.String() + ptrCompact[v.Pointer]
	case Integer:
		if v.Range == nil {
			return Integer.String() + UnknownLabel
		}
		return Integer.String() + v.Range.ShortStr()
	default:
		return ""
	}
}

const (
	symbolPrefix    = "&"
	assignmentDelim = ":="
	hopDelim        = "\\"
	unsignedSuffix  = "U"
	negativeSign    = "-"
)

// Parse reads one trace-log value-string (spec.md §6: type-tag, optional
// symbol, encoded-value) into a Value, weighting the observation by w.
// Bool/pointer encoded values are the checker's verbose words
// ("true"/"notnull"/...); this is the wire format of the raw input log, as
// opposed to the compact single-letter form this package emits in GetKey
// and String, and that Reparse reads back from this system's own output.
func Parse(d *diag.Context, valueExpr string, w weight.Weight) (*Value, error) {
	if len(valueExpr) == 0 {
		return nil, d.Fatalf("empty value string")
	}
	kind := Kind(valueExpr[0])
	untyped := valueExpr[1:]

	var symbol string
	var hasSymbol bool
	if strings.HasPrefix(untyped, symbolPrefix) {
		idx := strings.Index(untyped, assignmentDelim)
		if idx < 0 {
			return nil, d.Fatalf("malformed symbol in value string %q: missing %q", valueExpr, assignmentDelim)
		}
		symbol = untyped[len(symbolPrefix):idx]
		hasSymbol = true
		untyped = untyped[idx+len(assignmentDelim):]
	}

	switch kind {
	case Void:
		return NewVoid(w), nil
	case Bool:
		state, ok := boolVerbose[untyped]
		if !ok {
			return nil, d.Fatalf("unknown boolean value %q", untyped)
		}
		return NewBool(symbol, hasSymbol, state, w), nil
	case Pointer:
		state, ok := ptrVerbose[untyped]
		if !ok {
			return nil, d.Fatalf("unknown pointer value %q", untyped)
		}
		return NewPointer(symbol, hasSymbol, state, w), nil
	case Integer:
		r, err := parseIntEncoded(d, untyped, w)
		if err != nil {
			return nil, err
		}
		return NewInt(symbol, hasSymbol, r, w), nil
	default:
		return nil, d.Fatalf("unknown type tag %q in value string %q", string(kind), valueExpr)
	}
}

// parseIntEncoded handles spec.md §6's two int forms: a literal, or an
// assignment chain whose final hop's right-hand side is either "u" or a
// "{ [lo, hi], ... }" range-set literal. Intermediate hops (and the
// original's recursive left-expression grammar for resolving chained
// aliases) only ever feed the *symbol* string, already extracted by the
// caller — they never affect the resulting range — so this keeps only the
// final hop's right-hand side.
func parseIntEncoded(d *diag.Context, encoded string, w weight.Weight) (*rng.List, error) {
	if n, ok := parseLiteral(encoded); ok {
		return rng.New([]*rng.Node{rng.NewPoint(n, w)}, isListWeight(w), nil)
	}

	hops := strings.Split(encoded, hopDelim)
	lastHop := hops[len(hops)-1]
	parts := strings.Split(lastHop, assignmentDelim)
	rhs := parts[len(parts)-1]

	if rhs == UnknownLabel || rhs == "" {
		return nil, nil
	}
	return parseRangeSetLiteral(d, rhs, w)
}

func isListWeight(w weight.Weight) bool {
	_, ok := w.(weight.List)
	return ok
}

func parseLiteral(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	signed := true
	if strings.HasSuffix(s, unsignedSuffix) {
		signed = false
		s = s[:len(s)-len(unsignedSuffix)]
	}
	negative := false
	if strings.HasPrefix(s, negativeSign) {
		if !signed {
			return 0, false
		}
		negative = true
		s = s[len(negativeSign):]
	}
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		n = -n
	}
	return n, true
}

// parseRangeSetLiteral parses "{ [lo, hi], [lo, hi], ... }" checker syntax.
func parseRangeSetLiteral(d *diag.Context, s string, w weight.Weight) (*rng.List, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, d.Fatalf("empty range-set literal")
	}

	var nodes []*rng.Node
	for _, part := range strings.Split(s, "],") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "[")
		part = strings.TrimSuffix(part, "]")
		bounds := strings.Split(part, ",")
		if len(bounds) != 2 {
			return nil, d.Fatalf("malformed range literal %q", part)
		}
		lo, err := strconv.ParseInt(strings.TrimSpace(bounds[0]), 10, 64)
		if err != nil {
			return nil, d.Fatalf("malformed range bound %q: %v", bounds[0], err)
		}
		hi, err := strconv.ParseInt(strings.TrimSpace(bounds[1]), 10, 64)
		if err != nil {
			return nil, d.Fatalf("malformed range bound %q: %v", bounds[1], err)
		}
		nodes = append(nodes, rng.NewNode(lo, hi, w))
	}
	list, err := rng.New(nodes, isListWeight(w), nil)
	if err != nil {
		return nil, d.Fatal(err)
	}
	return list, nil
}

// parseRangeLabel parses the internal "lo_hi[,lo_hi...]" label form (spec.md
// §6) into the node for its first range, for Overlaps checks against a
// single histogram key; any later ranges in a multi-range label are ignored.
func parseRangeLabel(label string) (*rng.Node, error) {
	first := label
	if idx := strings.Index(label, rng.OutRangesDelim); idx >= 0 {
		first = label[:idx]
	}
	parts := strings.SplitN(first, rng.OutRangeDelim, 2)
	if len(parts) != 2 {
		return nil, errMalformedLabel(label)
	}
	lo, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, errMalformedLabel(label)
	}
	hi, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, errMalformedLabel(label)
	}
	return rng.NewNode(lo, hi, weight.One), nil
}

type malformedLabelError string

func (e malformedLabelError) Error() string { return "value: malformed range label " + string(e) }

func errMalformedLabel(label string) error { return malformedLabelError(label) }

// Reparse reads this system's own compact output notation (spec.md §6's
// ErrorSpec form, or the internal "lo_hi" range label) back into a Value,
// used when a later stage (the checker) re-reads a previously emitted
// ErrorSpec file.
func Reparse(d *diag.Context, kind Kind, label string, w weight.Weight) (*Value, error) {
	switch kind {
	case Void:
		return NewVoid(w), nil
	case Bool:
		state, ok := boolCompactReverse[label]
		if !ok {
			return nil, d.Fatalf("unknown compact boolean label %q", label)
		}
		return NewBool("", false, state, w), nil
	case Pointer:
		state, ok := ptrCompactReverse[label]
		if !ok {
			return nil, d.Fatalf("unknown compact pointer label %q", label)
		}
		return NewPointer("", false, state, w), nil
	case Integer:
		if label == "" || label == UnknownLabel {
			return NewInt("", false, nil, w), nil
		}
		var nodes []*rng.Node
		for _, part := range strings.Split(label, rng.OutRangesDelim) {
			bounds := strings.SplitN(part, rng.OutRangeDelim, 2)
			if len(bounds) != 2 {
				return nil, d.Fatalf("malformed range label %q", part)
			}
			lo, err := strconv.ParseInt(bounds[0], 10, 64)
			if err != nil {
				return nil, d.Fatalf("malformed range bound %q: %v", bounds[0], err)
			}
			hi, err := strconv.ParseInt(bounds[1], 10, 64)
			if err != nil {
				return nil, d.Fatalf("malformed range bound %q: %v", bounds[1], err)
			}
			nodes = append(nodes, rng.NewNode(lo, hi, w))
		}
		list, err := rng.New(nodes, isListWeight(w), nil)
		if err != nil {
			return nil, d.Fatal(err)
		}
		return NewInt("", false, list, w), nil
	default:
		return nil, d.Fatalf("unknown type tag %q", string(kind))
	}
}

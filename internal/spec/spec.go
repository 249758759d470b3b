// Package spec implements ErrorSpec (spec.md §4.7/§6): the in-memory model
// of one function's inferred (or loaded) error-return specification, its
// containment/overlap predicates, and the "ErrorSpec: " line wire format
// used to write and re-read it. Grounded on original_source/analysis/
// spec.py's SpecValue hierarchy and FullErrorSpec.
package spec

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/autoepex/autoepex/internal/rng"
	"github.com/autoepex/autoepex/internal/value"
	"github.com/autoepex/autoepex/internal/weight"
)

const (
	linePrefix       = "ErrorSpec: "
	noteDelim        = "\t"
	infallibleMarker = "infallible"
	negationMarker   = "!"
	partDelim        = "|"
)

// Value is the stored, checkable form of one function's error domain for a
// given value.Kind: which observations count as the error branch, and —
// for Integer — optionally which count as the known-good branch, used when
// the two were elected independently rather than one being "everything
// else".
type Value interface {
	Kind() value.Kind
	// Contains reports whether v falls inside the error domain.
	Contains(v *value.Value) bool
	// Overlaps reports whether v could plausibly be an error observation —
	// weaker than Contains: true whenever v is itself unknown, in addition
	// to whenever v overlaps the stored error domain.
	Overlaps(v *value.Value) bool
}

// simpleSpecValue backs BoolSpecValue and PtrSpecValue: both are just one
// stored compact label (t/f/u or m/n/u) naming the error branch.
type simpleSpecValue struct {
	kind  value.Kind
	label string
}

func (s simpleSpecValue) Kind() value.Kind { return s.kind }

func (s simpleSpecValue) Contains(v *value.Value) bool {
	return v.GetKey() == s.label
}

// Overlaps is unknown-always-overlaps: an unknown observation never rules
// out membership in the error domain, since the checker couldn't tell.
func (s simpleSpecValue) Overlaps(v *value.Value) bool {
	if v.IsUnknown() {
		return true
	}
	return v.GetKey() == s.label
}

func NewBoolSpecValue(label string) Value { return simpleSpecValue{kind: value.Bool, label: label} }
func NewPtrSpecValue(label string) Value  { return simpleSpecValue{kind: value.Pointer, label: label} }

// IntSpecValue is an integer function's error domain: the error ranges,
// with an optional opposite flag (wire "!" marker: "error is everything
// NOT in these ranges"), plus an optional separately-known non-error part
// used to make Outside precise when both branches were independently
// elected rather than one being inferred as the complement of the other.
type IntSpecValue struct {
	Error         *rng.List
	ErrorOpposite bool
	NonError      *rng.List // nil if never separately observed
}

func (s *IntSpecValue) Kind() value.Kind { return value.Integer }

func (s *IntSpecValue) errorContains(node *rng.Node) bool {
	in := s.Error.Contains(node)
	if s.ErrorOpposite {
		return !in
	}
	return in
}

func (s *IntSpecValue) errorOverlaps(node *rng.Node) bool {
	ov := s.Error.OverlapsSingle(node)
	if s.ErrorOpposite {
		return !ov
	}
	return ov
}

func (s *IntSpecValue) Contains(v *value.Value) bool {
	if v.Kind != value.Integer || v.Range == nil {
		return false
	}
	for _, node := range v.Range.Ranges {
		if !s.errorContains(node) {
			return false
		}
	}
	return len(v.Range.Ranges) > 0
}

func (s *IntSpecValue) Overlaps(v *value.Value) bool {
	if v.IsUnknown() {
		return true
	}
	if v.Kind != value.Integer || v.Range == nil {
		return false
	}
	for _, node := range v.Range.Ranges {
		if s.errorOverlaps(node) {
			return true
		}
	}
	return false
}

// Outside reports whether v is definitely in the non-error branch. When a
// non-error part was separately elected, that part's own containment is
// authoritative (it may be narrower than "everything Error doesn't
// cover" if some values were never observed at all); otherwise Outside
// falls back to "does not overlap the error domain".
func (s *IntSpecValue) Outside(v *value.Value) bool {
	if v.Kind != value.Integer || v.Range == nil {
		return false
	}
	if s.NonError != nil {
		for _, node := range v.Range.Ranges {
			if !s.NonError.Contains(node) {
				return false
			}
		}
		return len(v.Range.Ranges) > 0
	}
	return !s.Overlaps(v)
}

// FullErrorSpec is the canonical reader/writer for ErrorSpec files (spec.md
// §6): one Value per (function, kind), plus the set of functions elected
// as never failing at all (infallible — no error domain to check against).
// Grounded on spec.py's FullErrorSpec; the lighter, apparently-unused
// ErrorSpec/ErrorSpecParser duplicate in check_specs.py is not ported (see
// DESIGN.md).
type FullErrorSpec struct {
	entries     map[specKey]Value
	infallibles map[string]bool
}

type specKey struct {
	name string
	kind value.Kind
}

func NewFullErrorSpec() *FullErrorSpec {
	return &FullErrorSpec{entries: map[specKey]Value{}, infallibles: map[string]bool{}}
}

func (f *FullErrorSpec) Set(name string, v Value) {
	f.entries[specKey{name: name, kind: v.Kind()}] = v
}

func (f *FullErrorSpec) Get(name string, kind value.Kind) (Value, bool) {
	v, ok := f.entries[specKey{name: name, kind: kind}]
	return v, ok
}

func (f *FullErrorSpec) MarkInfallible(name string) { f.infallibles[name] = true }
func (f *FullErrorSpec) IsInfallible(name string) bool {
	return f.infallibles[name]
}

// Names returns every function name this spec has an opinion about, sorted.
func (f *FullErrorSpec) Names() []string {
	seen := map[string]bool{}
	for k := range f.entries {
		seen[k.name] = true
	}
	for n := range f.infallibles {
		seen[n] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Write serializes the spec in the "ErrorSpec: " line format.
func (f *FullErrorSpec) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, name := range f.Names() {
		if f.infallibles[name] {
			if _, err := fmt.Fprintf(bw, "%s%s %s\n", linePrefix, name, infallibleMarker); err != nil {
				return err
			}
			continue
		}
		for kind := range map[value.Kind]bool{value.Bool: true, value.Pointer: true, value.Integer: true} {
			sv, ok := f.Get(name, kind)
			if !ok {
				continue
			}
			line, err := formatEntry(name, sv)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(bw, line); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func formatEntry(name string, v Value) (string, error) {
	switch sv := v.(type) {
	case simpleSpecValue:
		return fmt.Sprintf("%s%s %s %s", linePrefix, name, sv.kind.String(), sv.label), nil
	case *IntSpecValue:
		errPart := sv.Error.ShortStr()
		if sv.ErrorOpposite {
			errPart = negationMarker + errPart
		}
		if sv.NonError != nil {
			errPart += partDelim + sv.NonError.ShortStr()
		}
		return fmt.Sprintf("%s%s %s %s", linePrefix, name, value.Integer.String(), errPart), nil
	default:
		return "", fmt.Errorf("spec: unknown Value implementation %T", v)
	}
}

// Read parses an ErrorSpec file.
func Read(r io.Reader) (*FullErrorSpec, error) {
	out := NewFullErrorSpec()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, linePrefix) {
			continue
		}
		line = strings.TrimPrefix(line, linePrefix)
		if idx := strings.Index(line, noteDelim); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		fields := strings.SplitN(line, " ", 3)
		if len(fields) < 2 {
			return nil, fmt.Errorf("spec: malformed line %q", line)
		}
		name := fields[0]
		if fields[1] == infallibleMarker {
			out.MarkInfallible(name)
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("spec: malformed line %q", line)
		}
		kind := value.Kind(fields[1][0])
		sv, err := parseEntry(kind, fields[2])
		if err != nil {
			return nil, fmt.Errorf("spec: %s: %w", name, err)
		}
		out.Set(name, sv)
	}
	return out, scanner.Err()
}

func parseEntry(kind value.Kind, encoded string) (Value, error) {
	switch kind {
	case value.Bool:
		return NewBoolSpecValue(encoded), nil
	case value.Pointer:
		return NewPtrSpecValue(encoded), nil
	case value.Integer:
		parts := strings.SplitN(encoded, partDelim, 2)
		errField := parts[0]
		opposite := strings.HasPrefix(errField, negationMarker)
		if opposite {
			errField = strings.TrimPrefix(errField, negationMarker)
		}
		errList, err := parseRangeList(errField)
		if err != nil {
			return nil, err
		}
		sv := &IntSpecValue{Error: errList, ErrorOpposite: opposite}
		if len(parts) == 2 {
			nonErr, err := parseRangeList(parts[1])
			if err != nil {
				return nil, err
			}
			sv.NonError = nonErr
		}
		return sv, nil
	default:
		return nil, fmt.Errorf("unknown type tag %q", string(kind))
	}
}

func parseRangeList(encoded string) (*rng.List, error) {
	if encoded == value.UnknownLabel || encoded == "" {
		return rng.New(nil, false, nil)
	}
	var nodes []*rng.Node
	for _, part := range strings.Split(encoded, rng.OutRangesDelim) {
		bounds := strings.SplitN(part, rng.OutRangeDelim, 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("malformed range %q", part)
		}
		lo, err := strconv.ParseInt(bounds[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed range bound %q: %w", bounds[0], err)
		}
		hi, err := strconv.ParseInt(bounds[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed range bound %q: %w", bounds[1], err)
		}
		nodes = append(nodes, rng.NewNode(lo, hi, weight.One))
	}
	return rng.New(nodes, false, nil)
}

// Package traceline parses one line of the external checker's trace-log
// wire format (spec.md §6): a chain of callee segments ending in one
// caller segment, each carrying the observed return value at that point,
// joined by '@', with an optional trailing '$' marking an exiting path.
// Grounded on spec.md §6's wire grammar (the part of original_source/
// analysis/auto_epex_parser.py's line-reading loop this system's trace
// format comes from).
package traceline

import (
	"strconv"
	"strings"

	"github.com/autoepex/autoepex/internal/diag"
	"github.com/autoepex/autoepex/internal/value"
	"github.com/autoepex/autoepex/internal/weight"
)

// Prefix filters which lines in an input log carry trace data; every other
// line is ignored.
const Prefix = "AutoEPEx: "

// NewFileMarker, once the Prefix is stripped, resets per-file aggregator
// state rather than carrying a path.
const NewFileMarker = "NEW FILE"

// Segment is one callee or caller step along a traced call chain.
type Segment struct {
	Function string
	File     string
	Line     int
	Col      int
	Value    *value.Value
	Count    int // loop-iteration count; 0 on the trailing caller segment
	IsCaller bool
}

// Line is one fully parsed trace record: its segment chain (callee
// segments first, caller segment last) and whether it was marked as an
// exiting path.
type Line struct {
	Segments []Segment
	ExitPath bool
}

// Parse reads one raw input-log line. It returns (nil, false, nil) for a
// line with no Prefix (ignored, not trace data), (nil, true, nil) for a
// "NEW FILE" marker, and a parsed Line otherwise. A malformed trace line is
// an input-format violation (spec.md §7) reported through d.
func Parse(d *diag.Context, raw string) (*Line, bool, error) {
	if !strings.HasPrefix(raw, Prefix) {
		return nil, false, nil
	}
	payload := strings.TrimPrefix(raw, Prefix)
	if payload == NewFileMarker {
		return nil, true, nil
	}

	exitPath := strings.HasSuffix(payload, "$")
	if exitPath {
		payload = payload[:len(payload)-1]
	}

	rawSegments := strings.Split(payload, "@")
	segments := make([]Segment, len(rawSegments))
	for i, raw := range rawSegments {
		isCaller := i == len(rawSegments)-1
		seg, err := parseSegment(d, raw, isCaller)
		if err != nil {
			return nil, false, err
		}
		segments[i] = seg
	}

	return &Line{Segments: segments, ExitPath: exitPath}, false, nil
}

func parseSegment(d *diag.Context, raw string, isCaller bool) (Segment, error) {
	spaceIdx := strings.Index(raw, " ")
	if spaceIdx < 0 {
		return Segment{}, d.Fatalf("malformed trace segment %q: missing function/location separator", raw)
	}
	function := raw[:spaceIdx]
	rest := raw[spaceIdx+1:]

	semiIdx := strings.Index(rest, ";")
	if semiIdx < 0 {
		return Segment{}, d.Fatalf("malformed trace segment %q: missing location/value separator", raw)
	}
	loc := rest[:semiIdx]
	valueAndCount := rest[semiIdx+1:]

	file, line, col, err := parseLoc(d, loc)
	if err != nil {
		return Segment{}, err
	}

	seg := Segment{Function: function, File: file, Line: line, Col: col, IsCaller: isCaller}

	valueExpr := valueAndCount
	if !isCaller {
		hashIdx := strings.LastIndex(valueAndCount, "#")
		if hashIdx < 0 {
			return Segment{}, d.Fatalf("malformed callee segment %q: missing count", raw)
		}
		valueExpr = valueAndCount[:hashIdx]
		count, err := strconv.Atoi(valueAndCount[hashIdx+1:])
		if err != nil {
			return Segment{}, d.Fatalf("malformed callee segment %q: bad count: %v", raw, err)
		}
		seg.Count = count
	}

	v, err := value.Parse(d, valueExpr, weight.One)
	if err != nil {
		return Segment{}, err
	}
	seg.Value = v
	return seg, nil
}

func parseLoc(d *diag.Context, loc string) (file string, line int, col int, err error) {
	parts := strings.Split(loc, ":")
	if len(parts) < 2 {
		return "", 0, 0, d.Fatalf("malformed location %q", loc)
	}
	file = parts[0]
	line, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, d.Fatalf("malformed location %q: bad line number: %v", loc, err)
	}
	if len(parts) >= 3 {
		col, err = strconv.Atoi(parts[2])
		if err != nil {
			return "", 0, 0, d.Fatalf("malformed location %q: bad column: %v", loc, err)
		}
	}
	return file, line, col, nil
}

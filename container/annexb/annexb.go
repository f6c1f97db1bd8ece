/*
DESCRIPTION
  Package annexb scans an Annex-B byte stream (ITU-T H.264 Annex B) for
  start codes, then groups the NAL units between them into access units
  (coded pictures) for callers that have elementary-stream bytes rather
  than an ISO-BMFF container. Byte spans are returned without copying; the
  caller owns the backing slice for the index's lifetime.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/
package annexb

import "github.com/pkg/errors"

// ErrNoStartCode indicates the data contains no Annex-B start code at all.
var ErrNoStartCode = errors.New("no Annex-B start code found")

// NAL unit types (clause 7.4.1) that close out an access unit: the coded
// slice of a non-IDR or IDR picture. Any run of non-slice NAL units
// (parameter sets, SEI, access unit delimiters) preceding one of these is
// grouped with it into a single access unit.
const (
	nalTypeSliceNonIDR = 1
	nalTypeSliceIDR    = 5
)

// Index is an ordered list of access units (coded pictures) found in an
// Annex-B stream, each made up of one or more NAL unit byte spans
// referencing the backing slice passed to Scan.
type Index struct {
	data  []byte
	spans [][2]int // every NAL unit found, in stream order; start code excluded.
	units [][]int  // span indices making up each access unit, in stream order.
}

// Count returns the number of access units (coded pictures) found.
func (idx *Index) Count() int { return len(idx.units) }

// AccessUnit returns the ordered NAL units making up access unit i: any
// parameter-set, SEI, or other non-slice NAL units that preceded its coded
// slice, followed by the slice NAL unit itself.
func (idx *Index) AccessUnit(i int) [][]byte {
	spans := idx.units[i]
	out := make([][]byte, len(spans))
	for j, s := range spans {
		span := idx.spans[s]
		out[j] = idx.data[span[0]:span[1]]
	}
	return out
}

// Scan finds every start-code-delimited NAL unit in data, groups them into
// access units, and returns an Index over the result. Both the 3-byte
// (0x000001) and 4-byte (0x00000001) start code forms are recognised, per
// clause B.1.1 of Annex B. Fails with ErrNoStartCode if data contains none.
func Scan(data []byte) (*Index, error) {
	starts := findStartCodes(data)
	if len(starts) == 0 {
		return nil, ErrNoStartCode
	}

	idx := &Index{data: data}
	for i, start := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1].codeStart
		}
		nalStart := start.codeStart + start.codeLen
		nalEnd := trimTrailingZeros(data, nalStart, end)
		if nalEnd <= nalStart {
			continue // empty NAL unit between consecutive start codes; skip.
		}
		idx.spans = append(idx.spans, [2]int{nalStart, nalEnd})
	}
	idx.units = groupAccessUnits(data, idx.spans)
	return idx, nil
}

// groupAccessUnits partitions spans, in order, into access units: each
// group accumulates NAL units until (and including) the next slice NAL
// unit. A trailing run with no closing slice NAL unit (e.g. parameter
// sets at the end of a truncated stream) still forms a final, sliceless
// access unit rather than being dropped.
func groupAccessUnits(data []byte, spans [][2]int) [][]int {
	var units [][]int
	var cur []int
	for i, s := range spans {
		cur = append(cur, i)
		nalType := data[s[0]] & 0x1f
		if nalType == nalTypeSliceNonIDR || nalType == nalTypeSliceIDR {
			units = append(units, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		units = append(units, cur)
	}
	return units
}

type startCode struct {
	codeStart int
	codeLen   int // 3 or 4.
}

// findStartCodes scans data for every occurrence of 0x000001, reporting
// the 4-byte form's leading zero as part of the code when present.
func findStartCodes(data []byte) []startCode {
	var out []startCode
	for i := 0; i+2 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 || data[i+2] != 1 {
			continue
		}
		codeLen := 3
		codeStart := i
		if i > 0 && data[i-1] == 0 {
			codeLen = 4
			codeStart = i - 1
		}
		out = append(out, startCode{codeStart: codeStart, codeLen: codeLen})
		i += 2
	}
	return out
}

// trimTrailingZeros excludes any trailing zero bytes (padding before the
// next start code, whose own leading zero is already excluded by
// findStartCodes) from this NAL unit's payload.
func trimTrailingZeros(data []byte, start, end int) int {
	for end > start && data[end-1] == 0 {
		end--
	}
	return end
}

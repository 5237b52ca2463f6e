package hypercontagion

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LoadHypergraphEdgeList reads a text file describing one hyperedge per
// line and returns the resulting Hypergraph. Lines starting with # are
// ignored as comments, and blank lines are skipped. Every other line is
// formatted as whitespace-separated member labels with an optional
// trailing weight token prefixed by @:
//
//	member_uid [member_uid ...] [@weight]
//
// A hypergraph is weighted if any line supplies a @weight token;
// members on every other line then default to weight 1.
func LoadHypergraphEdgeList(path string) (Hypergraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening hyperedge list %s", path)
	}
	defer f.Close()

	type rawEdge struct {
		members []string
		weight  float64
		hasWt   bool
		line    int
	}
	var raw []rawEdge
	weighted := false

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		e := rawEdge{members: fields, line: lineNo}
		if last := fields[len(fields)-1]; strings.HasPrefix(last, "@") {
			wt, err := strconv.ParseFloat(strings.TrimPrefix(last, "@"), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing weight on line %d", lineNo)
			}
			e.members = fields[:len(fields)-1]
			e.weight = wt
			e.hasWt = true
			weighted = true
		}
		if len(e.members) < 2 {
			return nil, errors.Errorf("hypercontagion: line %d has fewer than two members", lineNo)
		}
		raw = append(raw, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading hyperedge list %s", path)
	}

	h := NewHypergraph(weighted)
	for _, e := range raw {
		wt := e.weight
		if !e.hasWt {
			wt = 1
		}
		if _, err := h.AddEdge(e.members, wt); err != nil {
			return nil, errors.Wrapf(err, "edge on line %d", e.line)
		}
	}
	return h, nil
}

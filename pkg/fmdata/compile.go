package fmdata

import (
	"github.com/fivetwenty-io/fmdata/internal/constants"
)

// Compiled is a query resolved into wire values. Offsets are one-indexed and
// zero means "omit"; deferred WhereIn directives have been expanded.
type Compiled struct {
	Layout         string
	Requests       []*FindRequest
	Sort           []SortRule
	Limit          int
	Offset         int
	ForcedEmpty    bool
	LayoutResponse string
	Portals        []string
	PortalLimits   map[string]int
	PortalOffsets  map[string]int

	scripts scriptDirectives
}

// IsFind reports whether the query carries criteria. Without criteria it is
// served by the records route instead of _find.
func (c *Compiled) IsFind() bool {
	return len(c.Requests) > 0
}

// Compile resolves the query for a single execution. The receiver is not
// modified, so a query may be compiled and executed repeatedly.
func (q *Query) Compile() (*Compiled, error) {
	if q.err != nil {
		return nil, q.err
	}

	if q.layout == "" {
		return nil, ErrLayoutRequired
	}

	requests, forcedEmpty := q.Clone().expandRequests()

	rename := q.mapping.Resolve
	for _, request := range requests {
		request.rename = rename
	}

	compiled := &Compiled{
		Layout:         q.layout,
		Requests:       requests,
		Sort:           make([]SortRule, len(q.sorts)),
		Limit:          q.limit,
		Offset:         wireOffset(q.offset),
		ForcedEmpty:    forcedEmpty,
		LayoutResponse: q.layoutResponse,
		Portals:        append([]string(nil), q.portals...),
		PortalLimits:   copyIntMap(q.portalLimits),
		PortalOffsets:  make(map[string]int, len(q.portalOffsets)),
		scripts:        q.scripts,
	}

	for i, rule := range q.sorts {
		compiled.Sort[i] = SortRule{FieldName: rename(rule.FieldName), SortOrder: rule.SortOrder}
	}

	if compiled.Limit == 0 {
		compiled.Limit = constants.NoLimit
	}

	if forcedEmpty {
		compiled.Offset = constants.ImpossibleOffset
	}

	for portal, offset := range q.portalOffsets {
		if offset > 0 {
			compiled.PortalOffsets[portal] = wireOffset(offset)
		}
	}

	return compiled, nil
}

func wireOffset(offset int) int {
	if offset <= 0 {
		return 0
	}

	return offset + 1
}

// expandRequests cross-joins each request with its positive WhereIn
// directives, appends one omit request per negated value, and prunes
// requests left without criteria. It reports whether the result must be
// forced empty because an empty value list eliminated every positive request.
func (q *Query) expandRequests() ([]*FindRequest, bool) {
	var (
		out     []*FindRequest
		dropped bool
	)

	for index, base := range q.requests {
		expanded := []*FindRequest{base}
		impossible := false

		var negated []whereIn

		for _, directive := range q.whereIns {
			if directive.request != index {
				continue
			}

			if directive.negate {
				negated = append(negated, directive)

				continue
			}

			if len(directive.values) == 0 {
				impossible = true

				break
			}

			next := make([]*FindRequest, 0, len(expanded)*len(directive.values))
			for _, request := range expanded {
				for _, value := range directive.values {
					next = append(next, request.Clone().Set(directive.field, "=="+value.Text()))
				}
			}

			expanded = next
		}

		if impossible {
			if !base.Omit() {
				dropped = true
			}

			continue
		}

		out = append(out, expanded...)

		for _, directive := range negated {
			for _, value := range directive.values {
				out = append(out, NewFindRequest().Set(directive.field, "=="+value.Text()).SetOmit(true))
			}
		}
	}

	pruned := out[:0]
	positive := false

	for _, request := range out {
		if request.Len() == 0 {
			continue
		}

		if !request.Omit() {
			positive = true
		}

		pruned = append(pruned, request)
	}

	return pruned, dropped && !positive
}

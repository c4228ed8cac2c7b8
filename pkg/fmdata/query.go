package fmdata

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// noRequest is the cursor value when no find request is open.
const noRequest = -1

// operators lists the find operators accepted by Where and its variants.
var operators = map[string]struct{}{
	"=": {}, "==": {}, "≠": {}, "!": {},
	"<": {}, ">": {}, "<=": {}, "≤": {}, ">=": {}, "≥": {},
	"~": {},
}

// operatorAliases maps ASCII spellings to their FileMaker operator.
var operatorAliases = map[string]string{
	"!=": "≠",
	"<>": "≠",
}

type whereIn struct {
	field   string
	values  []Value
	negate  bool
	request int
}

type scriptDirectives struct {
	script          string
	scriptParam     string
	prerequest      string
	prerequestParam string
	presort         string
	presortParam    string
}

// Query builds a Data API call against one layout. Fields within a request
// are ANDed, requests are ORed, and omit requests exclude their matches.
//
// Builder methods record the first error they encounter; it is returned by
// Err and by every execution method before any network call.
type Query struct {
	executor Executor
	layout   string

	requests []*FindRequest
	cursor   int
	whereIns []whereIn

	sorts  []SortRule
	limit  int
	offset int

	scripts        scriptDirectives
	layoutResponse string
	portals        []string
	portalLimits   map[string]int
	portalOffsets  map[string]int

	fieldData  *FieldData
	portalData map[string][]*FieldData
	recordID   string
	modID      string

	mapping FieldMapping
	err     error
}

// NewQuery creates a query against layout executed by executor.
func NewQuery(executor Executor, layout string) *Query {
	return &Query{
		executor:      executor,
		layout:        layout,
		cursor:        noRequest,
		portalLimits:  make(map[string]int),
		portalOffsets: make(map[string]int),
	}
}

// Err returns the first builder error.
func (q *Query) Err() error {
	return q.err
}

// LayoutName returns the unprefixed layout name.
func (q *Query) LayoutName() string {
	return q.layout
}

// RecordID returns the targeted record ID.
func (q *Query) RecordID() string {
	return q.recordID
}

// ModID returns the modification ID guard.
func (q *Query) ModID() string {
	return q.modID
}

// ScriptName returns the script set with Script.
func (q *Query) ScriptName() string {
	return q.scripts.script
}

// Mapping returns the field rename table.
func (q *Query) Mapping() FieldMapping {
	return q.mapping
}

// Layout switches the target layout.
func (q *Query) Layout(layout string) *Query {
	q.layout = layout

	return q
}

// FieldMapping sets the application to FileMaker rename table. Renaming is
// applied only when the query is serialized.
func (q *Query) FieldMapping(mapping FieldMapping) *Query {
	q.mapping = mapping

	return q
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}

	return q
}

// openRequest appends an empty request and moves the cursor to it.
func (q *Query) openRequest() *FindRequest {
	request := NewFindRequest()
	q.requests = append(q.requests, request)
	q.cursor = len(q.requests) - 1

	return request
}

// current returns the open request, opening one if none is.
func (q *Query) current() *FindRequest {
	if q.cursor == noRequest {
		return q.openRequest()
	}

	return q.requests[q.cursor]
}

func normalizeOperator(operator string) (string, error) {
	op := norm.NFC.String(strings.TrimSpace(operator))
	if alias, ok := operatorAliases[op]; ok {
		op = alias
	}

	if _, ok := operators[op]; !ok {
		return "", fmt.Errorf("%w: %q", ErrIllegalOperator, operator)
	}

	return op, nil
}

// condition renders operator and value as a find criterion.
func condition(operator string, value any) (string, error) {
	op, err := normalizeOperator(operator)
	if err != nil {
		return "", err
	}

	if text := ValueOf(value).Text(); text != "" {
		return op + text, nil
	}

	switch op {
	case "=", "==", "!":
		return op, nil
	case "≠":
		return "*", nil
	default:
		return "", fmt.Errorf("%w: %q with an empty value", ErrIllegalOperatorValue, op)
	}
}

func (q *Query) where(field, operator string, value any, newRequest, omit bool) *Query {
	if q.err != nil {
		return q
	}

	criterion, err := condition(operator, value)
	if err != nil {
		return q.fail(fmt.Errorf("where %q: %w", field, err))
	}

	return q.setCriterion(field, criterion, newRequest, omit)
}

func (q *Query) setCriterion(field, criterion string, newRequest, omit bool) *Query {
	var request *FindRequest
	if newRequest {
		request = q.openRequest()
	} else {
		request = q.current()
	}

	request.Set(field, criterion)

	if omit {
		request.SetOmit(true)
	}

	return q
}

// Where adds field = value to the open request.
func (q *Query) Where(field string, value any) *Query {
	return q.where(field, "=", value, false, false)
}

// WhereOp adds a criterion with an explicit operator to the open request.
func (q *Query) WhereOp(field, operator string, value any) *Query {
	return q.where(field, operator, value, false, false)
}

// WhereMap adds each entry with "=" to the open request, ordered by field name.
func (q *Query) WhereMap(criteria map[string]any) *Query {
	data := FieldDataFrom(criteria)
	for _, name := range data.Names() {
		value, _ := data.Get(name)
		q.where(name, "=", value, false, false)
	}

	return q
}

// WhereRaw adds a criterion verbatim, using FileMaker find syntax.
func (q *Query) WhereRaw(field, criterion string) *Query {
	if q.err != nil {
		return q
	}

	return q.setCriterion(field, criterion, false, false)
}

// OrWhere opens a new request containing field = value.
func (q *Query) OrWhere(field string, value any) *Query {
	return q.where(field, "=", value, true, false)
}

// OrWhereOp opens a new request containing the criterion.
func (q *Query) OrWhereOp(field, operator string, value any) *Query {
	return q.where(field, operator, value, true, false)
}

// WhereNot opens a new omit request containing field = value.
func (q *Query) WhereNot(field string, value any) *Query {
	return q.where(field, "=", value, true, true)
}

// WhereNotOp opens a new omit request containing the criterion.
func (q *Query) WhereNotOp(field, operator string, value any) *Query {
	return q.where(field, operator, value, true, true)
}

// OrWhereNot behaves like WhereNot. Find requests cannot express "A or not B"
// more precisely.
func (q *Query) OrWhereNot(field string, value any) *Query {
	return q.where(field, "=", value, true, true)
}

// WhereKeyNot excludes records whose key field equals any of ids.
func (q *Query) WhereKeyNot(keyField string, ids ...any) *Query {
	if len(ids) == 1 {
		return q.WhereNotOp(keyField, "==", ids[0])
	}

	return q.WhereNotIn(keyField, ids)
}

// Omit flags the open request as an exclusion, or clears the flag.
func (q *Query) Omit(omit bool) *Query {
	q.current().SetOmit(omit)

	return q
}

// WhereNull matches records whose field is empty.
func (q *Query) WhereNull(field string) *Query {
	return q.WhereRaw(field, "=")
}

// WhereNotNull matches records whose field has any value.
func (q *Query) WhereNotNull(field string) *Query {
	return q.WhereRaw(field, "*")
}

// WhereBetween matches the inclusive range from..to.
func (q *Query) WhereBetween(field string, from, to any) *Query {
	return q.WhereRaw(field, ValueOf(from).Text()+"..."+ValueOf(to).Text())
}

func (q *Query) whereIn(field string, values []any, newRequest, negate bool) *Query {
	if q.err != nil {
		return q
	}

	if newRequest {
		q.openRequest()
	} else {
		q.current()
	}

	converted := make([]Value, len(values))
	for i, value := range values {
		converted[i] = ValueOf(value)
	}

	q.whereIns = append(q.whereIns, whereIn{
		field:   field,
		values:  converted,
		negate:  negate,
		request: q.cursor,
	})

	return q
}

// WhereIn restricts the open request to field matching any of values exactly.
// Expansion into find requests is deferred until the query is compiled.
func (q *Query) WhereIn(field string, values []any) *Query {
	return q.whereIn(field, values, false, false)
}

// OrWhereIn opens a new request restricted to field matching any of values.
func (q *Query) OrWhereIn(field string, values []any) *Query {
	return q.whereIn(field, values, true, false)
}

// WhereNotIn excludes records whose field matches any of values.
func (q *Query) WhereNotIn(field string, values []any) *Query {
	return q.whereIn(field, values, false, true)
}

// OrWhereNotIn behaves like WhereNotIn on a new request.
func (q *Query) OrWhereNotIn(field string, values []any) *Query {
	return q.whereIn(field, values, true, true)
}

// OrderBy appends a sort rule. direction is asc, ascend, desc or descend.
func (q *Query) OrderBy(field, direction string) *Query {
	var order SortOrder

	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "", "asc", "ascend":
		order = SortAscend
	case "desc", "descend":
		order = SortDescend
	default:
		return q.fail(fmt.Errorf("%w: %q", ErrInvalidSortOrder, direction))
	}

	q.sorts = append(q.sorts, SortRule{FieldName: field, SortOrder: order})

	return q
}

// OrderByDesc appends a descending sort rule.
func (q *Query) OrderByDesc(field string) *Query {
	return q.OrderBy(field, string(SortDescend))
}

// Sort replaces the sort list.
func (q *Query) Sort(rules ...SortRule) *Query {
	q.sorts = append([]SortRule(nil), rules...)

	return q
}

// Limit caps the number of returned records. Zero means no limit.
func (q *Query) Limit(limit int) *Query {
	q.limit = max(limit, 0)

	return q
}

// Offset skips records. It is zero-indexed.
func (q *Query) Offset(offset int) *Query {
	q.offset = max(offset, 0)

	return q
}

// ForPage sets limit and offset for a one-indexed page.
func (q *Query) ForPage(page, perPage int) *Query {
	page = max(page, 1)

	return q.Offset((page - 1) * perPage).Limit(perPage)
}

// Script runs name after the request.
func (q *Query) Script(name string) *Query {
	q.scripts.script = name

	return q
}

// ScriptParam sets the parameter of the script run after the request.
func (q *Query) ScriptParam(param string) *Query {
	q.scripts.scriptParam = param

	return q
}

// ScriptPrerequest runs name before the request.
func (q *Query) ScriptPrerequest(name string) *Query {
	q.scripts.prerequest = name

	return q
}

// ScriptPrerequestParam sets the parameter of the prerequest script.
func (q *Query) ScriptPrerequestParam(param string) *Query {
	q.scripts.prerequestParam = param

	return q
}

// ScriptPresort runs name before sorting.
func (q *Query) ScriptPresort(name string) *Query {
	q.scripts.presort = name

	return q
}

// ScriptPresortParam sets the parameter of the presort script.
func (q *Query) ScriptPresortParam(param string) *Query {
	q.scripts.presortParam = param

	return q
}

// LayoutResponse returns records using a different layout than the one searched.
func (q *Query) LayoutResponse(layout string) *Query {
	q.layoutResponse = layout

	return q
}

// Portal restricts which portals are returned.
func (q *Query) Portal(names ...string) *Query {
	q.portals = append(q.portals, names...)

	return q
}

// PortalLimit caps the rows returned for portal.
func (q *Query) PortalLimit(portal string, limit int) *Query {
	q.portalLimits[portal] = max(limit, 0)

	return q
}

// PortalOffset skips rows of portal. It is zero-indexed.
func (q *Query) PortalOffset(portal string, offset int) *Query {
	q.portalOffsets[portal] = max(offset, 0)

	return q
}

// ForRecord targets a single record.
func (q *Query) ForRecord(recordID string) *Query {
	q.recordID = recordID

	return q
}

// IfModID guards an edit: it fails unless the record still has modID.
func (q *Query) IfModID(modID string) *Query {
	q.modID = modID

	return q
}

// Set stores a field value for create or edit.
func (q *Query) Set(field string, value any) *Query {
	if q.fieldData == nil {
		q.fieldData = NewFieldData()
	}

	q.fieldData.Set(field, value)

	return q
}

// SetFieldData replaces the field values for create or edit.
func (q *Query) SetFieldData(data *FieldData) *Query {
	q.fieldData = data.Clone()

	return q
}

// SetPortalData adds related rows. Each row may carry "recordId" to edit an
// existing portal row.
func (q *Query) SetPortalData(portal string, rows ...map[string]any) *Query {
	if q.portalData == nil {
		q.portalData = make(map[string][]*FieldData)
	}

	for _, row := range rows {
		q.portalData[portal] = append(q.portalData[portal], FieldDataFrom(row))
	}

	return q
}

// FieldData returns the pending field values.
func (q *Query) FieldData() *FieldData {
	return q.fieldData
}

// Clone returns an independent copy sharing only the executor.
func (q *Query) Clone() *Query {
	clone := *q

	clone.requests = make([]*FindRequest, len(q.requests))
	for i, request := range q.requests {
		clone.requests[i] = request.Clone()
	}

	clone.whereIns = make([]whereIn, len(q.whereIns))
	for i, directive := range q.whereIns {
		directive.values = append([]Value(nil), directive.values...)
		clone.whereIns[i] = directive
	}

	clone.sorts = append([]SortRule(nil), q.sorts...)
	clone.portals = append([]string(nil), q.portals...)
	clone.portalLimits = copyIntMap(q.portalLimits)
	clone.portalOffsets = copyIntMap(q.portalOffsets)
	clone.fieldData = q.fieldData.Clone()

	if q.portalData != nil {
		clone.portalData = make(map[string][]*FieldData, len(q.portalData))
		for portal, rows := range q.portalData {
			copied := make([]*FieldData, len(rows))
			for i, row := range rows {
				copied[i] = row.Clone()
			}

			clone.portalData[portal] = copied
		}
	}

	return &clone
}

func copyIntMap(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

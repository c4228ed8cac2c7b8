package fmdata

import (
	"net/url"
	"sort"
	"strconv"
)

// FindBody renders the _find request body.
func (c *Compiled) FindBody() map[string]any {
	body := map[string]any{
		"query": c.Requests,
		"limit": c.Limit,
	}

	if len(c.Sort) > 0 {
		body["sort"] = c.Sort
	}

	if c.Offset > 0 {
		body["offset"] = c.Offset
	}

	if c.LayoutResponse != "" {
		body["layout.response"] = c.LayoutResponse
	}

	if len(c.Portals) > 0 {
		body["portal"] = c.Portals
	}

	for portal, limit := range c.PortalLimits {
		if limit > 0 {
			body["limit."+portal] = limit
		}
	}

	for portal, offset := range c.PortalOffsets {
		body["offset."+portal] = offset
	}

	c.scripts.apply(func(key, value string) { body[key] = value })

	return body
}

// RecordsParams renders the query parameters of the records route, used
// when the query has no criteria.
func (c *Compiled) RecordsParams() (url.Values, error) {
	params := url.Values{}
	params.Set("_limit", strconv.Itoa(c.Limit))

	if c.Offset > 0 {
		params.Set("_offset", strconv.Itoa(c.Offset))
	}

	if len(c.Sort) > 0 {
		encoded, err := marshalJSON(c.Sort)
		if err != nil {
			return nil, err
		}

		params.Set("_sort", string(encoded))
	}

	err := c.addReadParams(params, "_limit.", "_offset.")
	if err != nil {
		return nil, err
	}

	return params, nil
}

// RecordParams renders the query parameters of a single record read.
func (c *Compiled) RecordParams() (url.Values, error) {
	params := url.Values{}

	err := c.addReadParams(params, "_limit.", "_offset.")
	if err != nil {
		return nil, err
	}

	return params, nil
}

func (c *Compiled) addReadParams(params url.Values, limitPrefix, offsetPrefix string) error {
	if c.LayoutResponse != "" {
		params.Set("layout.response", c.LayoutResponse)
	}

	if len(c.Portals) > 0 {
		encoded, err := marshalJSON(c.Portals)
		if err != nil {
			return err
		}

		params.Set("portal", string(encoded))
	}

	for _, portal := range sortedKeys(c.PortalLimits) {
		if c.PortalLimits[portal] > 0 {
			params.Set(limitPrefix+portal, strconv.Itoa(c.PortalLimits[portal]))
		}
	}

	for _, portal := range sortedKeys(c.PortalOffsets) {
		params.Set(offsetPrefix+portal, strconv.Itoa(c.PortalOffsets[portal]))
	}

	c.scripts.apply(params.Set)

	return nil
}

// ScriptParams renders the script directives as query parameters, used by delete.
func (c *Compiled) ScriptParams() url.Values {
	params := url.Values{}
	c.scripts.apply(params.Set)

	return params
}

// ScriptBody renders the script directives as a body, used by duplicate.
func (c *Compiled) ScriptBody() map[string]any {
	body := map[string]any{}
	c.scripts.apply(func(key, value string) { body[key] = value })

	return body
}

// WriteBody renders the create or edit body. Container values are returned
// separately for upload once the record exists.
func (q *Query) WriteBody() (map[string]any, []*ContainerUpload, error) {
	if q.err != nil {
		return nil, nil, q.err
	}

	data := q.fieldData
	if data == nil {
		data = NewFieldData()
	}

	data = data.Clone()
	data.rename = q.mapping.Resolve

	plain, uploads := data.Split()

	body := map[string]any{"fieldData": plain}

	if len(q.portalData) > 0 {
		portals := make(map[string][]*FieldData, len(q.portalData))

		for portal, rows := range q.portalData {
			renamed := make([]*FieldData, len(rows))
			for i, row := range rows {
				renamed[i] = row.Clone()
				renamed[i].rename = q.mapping.Resolve
			}

			portals[portal] = renamed
		}

		body["portalData"] = portals
	}

	if q.modID != "" {
		body["modId"] = q.modID
	}

	q.scripts.apply(func(key, value string) { body[key] = value })

	return body, uploads, nil
}

// HasWrites reports whether an edit would change anything.
func (q *Query) HasWrites() bool {
	return q.fieldData.Len() > 0 || len(q.portalData) > 0
}

// ScriptCallParams renders the query of a standalone script call.
func (q *Query) ScriptCallParams() url.Values {
	params := url.Values{}
	if q.scripts.scriptParam != "" {
		params.Set("script.param", q.scripts.scriptParam)
	}

	return params
}

// GlobalFieldsBody renders the body of a global fields update.
func GlobalFieldsBody(fields map[string]any) map[string]any {
	return map[string]any{"globalFields": FieldDataFrom(fields)}
}

// EncodeJSON encodes v as the Data API expects it.
func EncodeJSON(v any) ([]byte, error) {
	return marshalJSON(v)
}

func (s scriptDirectives) apply(set func(key, value string)) {
	pairs := []struct{ key, name, param string }{
		{"script", s.script, s.scriptParam},
		{"script.prerequest", s.prerequest, s.prerequestParam},
		{"script.presort", s.presort, s.presortParam},
	}

	for _, pair := range pairs {
		if pair.name == "" {
			continue
		}

		set(pair.key, pair.name)

		if pair.param != "" {
			set(pair.key+".param", pair.param)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

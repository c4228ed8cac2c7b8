package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fivetwenty-io/fmdata/internal/constants"
	fmhttp "github.com/fivetwenty-io/fmdata/internal/http"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
)

// PerformFind implements fmdata.Executor. Queries without criteria are sent
// to the records route as URL parameters instead of a _find body.
func (c *Client) PerformFind(ctx context.Context, q *fmdata.Query) (*fmdata.RecordsResponse, error) {
	compiled, err := q.Compile()
	if err != nil {
		return nil, err
	}

	req := &fmhttp.Request{Layout: c.layoutName(q)}

	if compiled.IsFind() {
		req.Method = http.MethodPost
		req.Path = c.layoutPath(q) + "/_find"
		req.Body = compiled.FindBody()
		req.Command = "find"
	} else {
		params, paramsErr := compiled.RecordsParams()
		if paramsErr != nil {
			return nil, fmt.Errorf("encoding records parameters: %w", paramsErr)
		}

		req.Method = http.MethodGet
		req.Path = c.layoutPath(q) + "/records"
		req.Query = params
		req.Command = "records"
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		if compiled.ForcedEmpty && forcedEmptyCode(err) {
			return &fmdata.RecordsResponse{Data: []fmdata.Record{}}, nil
		}

		return nil, fmt.Errorf("finding records: %w", err)
	}

	var result fmdata.RecordsResponse

	err = resp.Decode(&result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// forcedEmptyCode reports whether err is how the server answers a read at
// ImpossibleOffset. Anything else, a missing layout included, is fatal.
func forcedEmptyCode(err error) bool {
	switch fmdata.Code(err) {
	case constants.CodeNoRecordsMatch, constants.CodeOffsetPastFoundSet:
		return true
	default:
		return false
	}
}

// GetRecord implements fmdata.Executor.
func (c *Client) GetRecord(ctx context.Context, q *fmdata.Query) (*fmdata.RecordsResponse, error) {
	if q.RecordID() == "" {
		return nil, fmdata.ErrRecordIDRequired
	}

	compiled, err := q.Compile()
	if err != nil {
		return nil, err
	}

	params, err := compiled.RecordParams()
	if err != nil {
		return nil, fmt.Errorf("encoding record parameters: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, &fmhttp.Request{
		Method:  http.MethodGet,
		Path:    c.recordPath(q),
		Query:   params,
		Command: "get",
		Layout:  c.layoutName(q),
	})
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", q.RecordID(), err)
	}

	var result fmdata.RecordsResponse

	err = resp.Decode(&result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// CreateRecord implements fmdata.Executor. Container values are not sent;
// the caller uploads them once the record exists.
func (c *Client) CreateRecord(ctx context.Context, q *fmdata.Query) (*fmdata.WriteResponse, error) {
	if q.LayoutName() == "" {
		return nil, fmdata.ErrLayoutRequired
	}

	body, _, err := q.WriteBody()
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(ctx, &fmhttp.Request{
		Method:  http.MethodPost,
		Path:    c.layoutPath(q) + "/records",
		Body:    body,
		Command: "create",
		Layout:  c.layoutName(q),
	})
	if err != nil {
		return nil, fmt.Errorf("creating record: %w", err)
	}

	return decodeWrite(resp)
}

// EditRecord implements fmdata.Executor.
func (c *Client) EditRecord(ctx context.Context, q *fmdata.Query) (*fmdata.WriteResponse, error) {
	if q.RecordID() == "" {
		return nil, fmdata.ErrRecordIDRequired
	}

	body, _, err := q.WriteBody()
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(ctx, &fmhttp.Request{
		Method:  http.MethodPatch,
		Path:    c.recordPath(q),
		Body:    body,
		Command: "edit",
		Layout:  c.layoutName(q),
	})
	if err != nil {
		return nil, fmt.Errorf("editing record %s: %w", q.RecordID(), err)
	}

	return decodeWrite(resp)
}

// DeleteRecord implements fmdata.Executor.
func (c *Client) DeleteRecord(ctx context.Context, q *fmdata.Query) error {
	if q.RecordID() == "" {
		return fmdata.ErrRecordIDRequired
	}

	compiled, err := q.Compile()
	if err != nil {
		return err
	}

	_, err = c.httpClient.Do(ctx, &fmhttp.Request{
		Method:  http.MethodDelete,
		Path:    c.recordPath(q),
		Query:   compiled.ScriptParams(),
		Command: "delete",
		Layout:  c.layoutName(q),
	})
	if err != nil {
		return fmt.Errorf("deleting record %s: %w", q.RecordID(), err)
	}

	return nil
}

// DuplicateRecord implements fmdata.Executor.
func (c *Client) DuplicateRecord(ctx context.Context, q *fmdata.Query) (*fmdata.WriteResponse, error) {
	if q.RecordID() == "" {
		return nil, fmdata.ErrRecordIDRequired
	}

	compiled, err := q.Compile()
	if err != nil {
		return nil, err
	}

	req := &fmhttp.Request{
		Method:  http.MethodPost,
		Path:    c.recordPath(q),
		Headers: map[string]string{"Content-Type": "application/json"},
		Command: "duplicate",
		Layout:  c.layoutName(q),
	}

	if scripts := compiled.ScriptBody(); len(scripts) > 0 {
		req.Body = scripts
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("duplicating record %s: %w", q.RecordID(), err)
	}

	return decodeWrite(resp)
}

// UploadContainer implements fmdata.Executor. The content is buffered so the
// upload can be resent after a retry or a session refresh.
func (c *Client) UploadContainer(ctx context.Context, q *fmdata.Query, upload *fmdata.ContainerUpload) (*fmdata.WriteResponse, error) {
	if q.RecordID() == "" {
		return nil, fmdata.ErrRecordIDRequired
	}

	content, err := io.ReadAll(upload.Content)
	if err != nil {
		return nil, fmt.Errorf("reading container content: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, &fmhttp.Request{
		Method: http.MethodPost,
		Path:   c.recordPath(q) + "/containers/" + url.PathEscape(upload.Field),
		Multipart: &fmhttp.MultipartFile{
			Field:    constants.ContainerUploadField,
			Filename: upload.Filename,
			Content:  content,
		},
		Command: "upload",
		Layout:  c.layoutName(q),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading container %s: %w", upload.Field, err)
	}

	result, err := decodeWrite(resp)
	if err != nil {
		return nil, err
	}

	if result.RecordID == "" {
		result.RecordID = q.RecordID()
	}

	return result, nil
}

// ExecuteScript implements fmdata.Executor.
func (c *Client) ExecuteScript(ctx context.Context, q *fmdata.Query) (*fmdata.ScriptResponse, error) {
	if q.ScriptName() == "" {
		return nil, fmdata.ErrScriptRequired
	}

	if q.LayoutName() == "" {
		return nil, fmdata.ErrLayoutRequired
	}

	resp, err := c.httpClient.Do(ctx, &fmhttp.Request{
		Method:  http.MethodGet,
		Path:    c.layoutPath(q) + "/script/" + url.PathEscape(q.ScriptName()),
		Query:   q.ScriptCallParams(),
		Command: "script",
		Layout:  c.layoutName(q),
	})
	if err != nil {
		return nil, fmt.Errorf("executing script %s: %w", q.ScriptName(), err)
	}

	var result fmdata.ScriptResponse

	err = resp.Decode(&result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func decodeWrite(resp *fmhttp.Response) (*fmdata.WriteResponse, error) {
	var result fmdata.WriteResponse

	err := resp.Decode(&result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

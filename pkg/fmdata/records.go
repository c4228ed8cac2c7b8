package fmdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/fivetwenty-io/fmdata/internal/constants"
)

func (q *Query) ready() error {
	if q.err != nil {
		return q.err
	}

	if q.executor == nil {
		return ErrNoExecutor
	}

	return nil
}

// Get returns every record matching the query. A find that matches nothing
// returns an empty slice.
func (q *Query) Get(ctx context.Context) ([]Record, error) {
	resp, err := q.find(ctx)
	if err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// All is an alias of Get.
func (q *Query) All(ctx context.Context) ([]Record, error) {
	return q.Get(ctx)
}

// First returns the first matching record or ErrNoRecords.
func (q *Query) First(ctx context.Context) (*Record, error) {
	records, err := q.Clone().Limit(1).Get(ctx)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	return &records[0], nil
}

// Value returns one field of the first matching record.
func (q *Query) Value(ctx context.Context, field string) (any, error) {
	record, err := q.First(ctx)
	if err != nil {
		return nil, err
	}

	value, _ := record.Field(field, q.mapping)

	return value, nil
}

// Count returns the found count, fetching a single record.
func (q *Query) Count(ctx context.Context) (int, error) {
	resp, err := q.Clone().Limit(1).find(ctx)
	if err != nil {
		return 0, err
	}

	return resp.DataInfo.FoundCount, nil
}

// Exists reports whether any record matches.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// DoesntExist reports whether no record matches.
func (q *Query) DoesntExist(ctx context.Context) (bool, error) {
	exists, err := q.Exists(ctx)

	return !exists, err
}

// Min returns the smallest value of field among matching records.
func (q *Query) Min(ctx context.Context, field string) (any, error) {
	return q.extreme(ctx, field, SortAscend)
}

// Max returns the largest value of field among matching records.
func (q *Query) Max(ctx context.Context, field string) (any, error) {
	return q.extreme(ctx, field, SortDescend)
}

func (q *Query) extreme(ctx context.Context, field string, order SortOrder) (any, error) {
	value, err := q.Clone().Sort(SortRule{FieldName: field, SortOrder: order}).Value(ctx, field)
	if err != nil {
		if errors.Is(err, ErrNoRecords) {
			return nil, nil
		}

		return nil, err
	}

	return value, nil
}

// Paginate returns one page and the total found count. page is one-indexed.
func (q *Query) Paginate(ctx context.Context, perPage, page int) (*Page, error) {
	if perPage <= 0 {
		perPage = constants.DefaultPerPage
	}

	page = max(page, 1)

	resp, err := q.Clone().ForPage(page, perPage).find(ctx)
	if err != nil {
		return nil, err
	}

	total := resp.DataInfo.FoundCount
	lastPage := max((total+perPage-1)/perPage, 1)

	return &Page{
		Records:     resp.Data,
		Total:       total,
		PerPage:     perPage,
		CurrentPage: page,
		LastPage:    lastPage,
	}, nil
}

// Chunk walks the found set page by page until fn returns false or an error.
func (q *Query) Chunk(ctx context.Context, size int, fn func(records []Record) (bool, error)) error {
	for page := 1; ; page++ {
		result, err := q.Paginate(ctx, size, page)
		if err != nil {
			return err
		}

		if len(result.Records) == 0 {
			return nil
		}

		more, err := fn(result.Records)
		if err != nil {
			return err
		}

		if !more || !result.HasMorePages() {
			return nil
		}
	}
}

// FindByRecordID reads one record. A missing record is an error.
func (q *Query) FindByRecordID(ctx context.Context, recordID string) (*Record, error) {
	err := q.ready()
	if err != nil {
		return nil, err
	}

	resp, err := q.executor.GetRecord(ctx, q.Clone().ForRecord(recordID))
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoRecords
	}

	return &resp.Data[0], nil
}

func (q *Query) find(ctx context.Context) (*RecordsResponse, error) {
	err := q.ready()
	if err != nil {
		return nil, err
	}

	resp, err := q.executor.PerformFind(ctx, q)
	if err != nil {
		if IsNoRecordsMatch(err) {
			return &RecordsResponse{Data: []Record{}}, nil
		}

		return nil, err
	}

	if resp.Data == nil {
		resp.Data = []Record{}
	}

	return resp, nil
}

// Create writes a new record from the pending field values, then uploads
// any container values to it.
func (q *Query) Create(ctx context.Context) (*WriteResponse, error) {
	err := q.ready()
	if err != nil {
		return nil, err
	}

	resp, err := q.executor.CreateRecord(ctx, q)
	if err != nil {
		return nil, err
	}

	return q.uploadPending(ctx, resp)
}

// Insert sets values and creates a record.
func (q *Query) Insert(ctx context.Context, values map[string]any) (*WriteResponse, error) {
	return q.Clone().SetFieldData(FieldDataFrom(values)).Create(ctx)
}

// Edit updates the record set with ForRecord. Nothing is sent when there is
// nothing to write.
func (q *Query) Edit(ctx context.Context) (*WriteResponse, error) {
	err := q.ready()
	if err != nil {
		return nil, err
	}

	if q.recordID == "" {
		return nil, ErrRecordIDRequired
	}

	plain, uploads := q.pendingFields()
	if plain.Len() == 0 && len(q.portalData) == 0 {
		if len(uploads) == 0 {
			return &WriteResponse{RecordID: q.recordID, ModID: q.modID}, nil
		}

		return q.uploadPending(ctx, &WriteResponse{RecordID: q.recordID})
	}

	resp, err := q.executor.EditRecord(ctx, q)
	if err != nil {
		return nil, err
	}

	if resp.RecordID == "" {
		resp.RecordID = q.recordID
	}

	return q.uploadPending(ctx, resp)
}

// Update sets values, edits the record and returns the number of records
// changed. A record that no longer exists counts as zero.
func (q *Query) Update(ctx context.Context, values map[string]any) (int, error) {
	clone := q.Clone()
	for _, name := range FieldDataFrom(values).Names() {
		clone.Set(name, values[name])
	}

	_, err := clone.Edit(ctx)
	if err != nil {
		if IsRecordMissing(err) {
			return 0, nil
		}

		return 0, err
	}

	return 1, nil
}

// Delete removes the record set with ForRecord and returns the number of
// records deleted. A record that no longer exists counts as zero.
func (q *Query) Delete(ctx context.Context) (int, error) {
	err := q.ready()
	if err != nil {
		return 0, err
	}

	if q.recordID == "" {
		return 0, ErrRecordIDRequired
	}

	err = q.executor.DeleteRecord(ctx, q)
	if err != nil {
		if IsRecordMissing(err) {
			return 0, nil
		}

		return 0, err
	}

	return 1, nil
}

// Duplicate copies the record set with ForRecord.
func (q *Query) Duplicate(ctx context.Context) (*WriteResponse, error) {
	err := q.ready()
	if err != nil {
		return nil, err
	}

	if q.recordID == "" {
		return nil, ErrRecordIDRequired
	}

	return q.executor.DuplicateRecord(ctx, q)
}

// SetContainer uploads a file into field of the record set with ForRecord.
func (q *Query) SetContainer(ctx context.Context, field string, upload Value) (*WriteResponse, error) {
	err := q.ready()
	if err != nil {
		return nil, err
	}

	if q.recordID == "" {
		return nil, ErrRecordIDRequired
	}

	if !upload.IsContainer() {
		return nil, fmt.Errorf("field %q: %w", field, ErrContainerNotSerialized)
	}

	payload := *upload.Upload()
	payload.Field = q.mapping.Resolve(field)

	return q.executor.UploadContainer(ctx, q, &payload)
}

// ExecuteScript runs a script on the layout without touching records.
func (q *Query) ExecuteScript(ctx context.Context, name, param string) (*ScriptResponse, error) {
	err := q.ready()
	if err != nil {
		return nil, err
	}

	if name == "" {
		return nil, ErrScriptRequired
	}

	return q.executor.ExecuteScript(ctx, q.Clone().Script(name).ScriptParam(param))
}

// PerformScript is an alias of ExecuteScript.
func (q *Query) PerformScript(ctx context.Context, name, param string) (*ScriptResponse, error) {
	return q.ExecuteScript(ctx, name, param)
}

func (q *Query) pendingFields() (*FieldData, []*ContainerUpload) {
	if q.fieldData == nil {
		return NewFieldData(), nil
	}

	data := q.fieldData.Clone()
	data.rename = q.mapping.Resolve

	return data.Split()
}

// uploadPending uploads container values in field order. Each upload
// changes the record, so the last modification ID wins.
func (q *Query) uploadPending(ctx context.Context, resp *WriteResponse) (*WriteResponse, error) {
	_, uploads := q.pendingFields()
	if len(uploads) == 0 {
		return resp, nil
	}

	target := q.Clone().ForRecord(resp.RecordID)

	for _, upload := range uploads {
		uploaded, err := q.executor.UploadContainer(ctx, target, upload)
		if err != nil {
			return nil, fmt.Errorf("failed to upload container field %q: %w", upload.Field, err)
		}

		if uploaded.ModID != "" {
			resp.ModID = uploaded.ModID
		}
	}

	return resp, nil
}

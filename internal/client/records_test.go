package client_test

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/fivetwenty-io/fmdata/internal/constants"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:funlen
func TestClient_PerformFind(t *testing.T) {
	t.Parallel()

	t.Run("criteria are posted to _find", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			writeRecords(writer, 2, map[string]any{"name": "Ada"}, map[string]any{"name": "Alan"})
		})
		c := newTestClient(t, server)

		records, err := c.Layout("Contacts").
			Where("city", "London").
			OrWhere("city", "Paris").
			Offset(4).
			Get(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "Alan", records[1].FieldData["name"])

		last := server.Last(t)
		assert.Equal(t, http.MethodPost, last.Method)
		assert.Equal(t, "/layouts/Contacts/_find", last.Path)
		assert.Equal(t, "application/json", last.ContentType)

		body := decodeBody(t, last.Body)
		assert.Equal(t, []any{
			map[string]any{"city": "=London"},
			map[string]any{"city": "=Paris"},
		}, body["query"])
		assert.EqualValues(t, 5, body["offset"])
	})

	t.Run("no criteria reads the records route", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			writeRecords(writer, 1, map[string]any{"name": "Ada"})
		})
		c := newTestClient(t, server)

		_, err := c.Layout("Contacts").OrderBy("name", "ascend").Get(context.Background())
		require.NoError(t, err)

		last := server.Last(t)
		assert.Equal(t, http.MethodGet, last.Method)
		assert.Equal(t, "/layouts/Contacts/records", last.Path)
		assert.Equal(t, strconv.Itoa(constants.NoLimit), last.Query.Get("_limit"))
		assert.Empty(t, last.Query.Get("_offset"))
		assert.JSONEq(t, `[{"fieldName":"name","sortOrder":"ascend"}]`, last.Query.Get("_sort"))
	})

	t.Run("no records match is an empty result", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			writeEnvelope(writer, http.StatusInternalServerError, "401", "No records match the request", map[string]any{})
		})
		c := newTestClient(t, server)
		ctx := context.Background()

		records, err := c.Layout("Contacts").Where("name", "Nobody").Get(ctx)
		require.NoError(t, err)
		assert.Empty(t, records)

		count, err := c.Layout("Contacts").Where("name", "Nobody").Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		_, err = c.Layout("Contacts").Where("name", "Nobody").First(ctx)
		require.ErrorIs(t, err, fmdata.ErrNoRecords)
	})

	t.Run("count fetches a single record", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			writeRecords(writer, 42, map[string]any{"name": "Ada"})
		})
		c := newTestClient(t, server)

		count, err := c.Layout("Contacts").Where("active", true).Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 42, count)

		body := decodeBody(t, server.Last(t).Body)
		assert.EqualValues(t, 1, body["limit"])
		assert.Equal(t, []any{map[string]any{"active": "=1"}}, body["query"])
	})

	t.Run("empty where in never matches", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			writeEnvelope(writer, http.StatusInternalServerError, "101", "Record is missing", map[string]any{})
		})
		c := newTestClient(t, server)

		records, err := c.Layout("Contacts").WhereIn("id", nil).Get(context.Background())
		require.NoError(t, err)
		assert.Empty(t, records)

		last := server.Last(t)
		assert.Equal(t, "/layouts/Contacts/records", last.Path)
		assert.Equal(t, strconv.Itoa(constants.ImpossibleOffset), last.Query.Get("_offset"))
	})

	t.Run("empty where in still reports a missing layout", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			writeEnvelope(writer, http.StatusInternalServerError, "105", "Layout is missing", map[string]any{})
		})
		c := newTestClient(t, server)

		records, err := c.Layout("NoSuchLayout").WhereIn("id", nil).Get(context.Background())
		require.Error(t, err)
		assert.Nil(t, records)
		assert.True(t, fmdata.IsLayoutMissing(err))
		assert.Contains(t, err.Error(), "layout: NoSuchLayout")
	})

	t.Run("empty where in still reports other API errors", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			writeEnvelope(writer, http.StatusInternalServerError, "500", "Date value does not meet validation entry options", map[string]any{})
		})
		c := newTestClient(t, server)

		_, err := c.Layout("Contacts").WhereIn("id", nil).Get(context.Background())
		require.Error(t, err)
		assert.Equal(t, 500, fmdata.Code(err))
	})

	t.Run("other errors are returned", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			writeEnvelope(writer, http.StatusInternalServerError, "102", "Field is missing", map[string]any{})
		})
		c := newTestClient(t, server)

		_, err := c.Layout("Contacts").Where("nope", "x").Get(context.Background())
		require.Error(t, err)
		assert.Equal(t, 102, fmdata.Code(err))
	})
}

func TestClient_Paginate(t *testing.T) {
	t.Parallel()

	server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
		writeRecords(writer, 45, map[string]any{"name": "Ada"})
	})
	c := newTestClient(t, server)

	page, err := c.Layout("Contacts").Paginate(context.Background(), 20, 2)
	require.NoError(t, err)

	assert.Equal(t, 45, page.Total)
	assert.Equal(t, 3, page.LastPage)
	assert.True(t, page.HasMorePages())

	last := server.Last(t)
	assert.Equal(t, "/layouts/Contacts/records", last.Path)
	assert.Equal(t, "20", last.Query.Get("_limit"))
	assert.Equal(t, "21", last.Query.Get("_offset"))
}

func TestClient_FindByRecordID(t *testing.T) {
	t.Parallel()

	server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
		if req.Path == "/layouts/Contacts/records/9" {
			writeRecords(writer, 1, map[string]any{"name": "Ada"})

			return
		}

		writeEnvelope(writer, http.StatusInternalServerError, "101", "Record is missing", map[string]any{})
	})
	c := newTestClient(t, server)
	ctx := context.Background()

	record, err := c.Layout("Contacts").Portal("Phones").FindByRecordID(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, "Ada", record.FieldData["name"])
	assert.JSONEq(t, `["Phones"]`, server.Last(t).Query.Get("portal"))

	_, err = c.Layout("Contacts").FindByRecordID(ctx, "10")
	require.Error(t, err)
	assert.True(t, fmdata.IsRecordMissing(err))
}

//nolint:funlen
func TestClient_Writes(t *testing.T) {
	t.Parallel()

	t.Run("create uploads containers after the record", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			if strings.Contains(req.Path, "/containers/") {
				writeEnvelope(writer, http.StatusOK, "0", "OK", map[string]string{"modId": "1"})

				return
			}

			writeEnvelope(writer, http.StatusOK, "0", "OK", map[string]string{"recordId": "7", "modId": "0"})
		})
		c := newTestClient(t, server)

		resp, err := c.Layout("Contacts").
			FieldMapping(fmdata.FieldMapping{"photo": "Photo"}).
			Set("name", "Ada").
			Set("photo", fmdata.Container("ada.png", bytes.NewReader([]byte("png")))).
			Create(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "7", resp.RecordID)
		assert.Equal(t, "1", resp.ModID)

		requests := server.Requests()
		require.Len(t, requests, 2)

		assert.Equal(t, "/layouts/Contacts/records", requests[0].Path)
		assert.JSONEq(t, `{"fieldData":{"name":"Ada"}}`, requests[0].Body)

		assert.Equal(t, "/layouts/Contacts/records/7/containers/Photo", requests[1].Path)
		assert.True(t, strings.HasPrefix(requests[1].ContentType, "multipart/form-data"))
		assert.Contains(t, requests[1].Body, `name="upload"; filename="ada.png"`)
	})

	t.Run("update of a missing record changes nothing", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			writeEnvelope(writer, http.StatusInternalServerError, "101", "Record is missing", map[string]any{})
		})
		c := newTestClient(t, server)

		changed, err := c.Layout("Contacts").ForRecord("5").Update(context.Background(), map[string]any{"name": "Ada"})
		require.NoError(t, err)
		assert.Zero(t, changed)

		last := server.Last(t)
		assert.Equal(t, http.MethodPatch, last.Method)
		assert.Equal(t, "/layouts/Contacts/records/5", last.Path)
	})

	t.Run("edit sends the modification id", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			writeEnvelope(writer, http.StatusOK, "0", "OK", map[string]string{"modId": "5"})
		})
		c := newTestClient(t, server)

		resp, err := c.Layout("Contacts").ForRecord("5").IfModID("4").Set("name", "Ada").Edit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "5", resp.RecordID)
		assert.Equal(t, "5", resp.ModID)
		assert.JSONEq(t, `{"fieldData":{"name":"Ada"},"modId":"4"}`, server.Last(t).Body)
	})

	t.Run("delete passes scripts as parameters", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, nil)
		c := newTestClient(t, server)

		deleted, err := c.Layout("Contacts").ForRecord("5").Script("Cleanup").ScriptParam("5").Delete(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		last := server.Last(t)
		assert.Equal(t, http.MethodDelete, last.Method)
		assert.Equal(t, "/layouts/Contacts/records/5", last.Path)
		assert.Equal(t, "Cleanup", last.Query.Get("script"))
		assert.Equal(t, "5", last.Query.Get("script.param"))
	})

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()

		server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
			writeEnvelope(writer, http.StatusOK, "0", "OK", map[string]string{"recordId": "6", "modId": "0"})
		})
		c := newTestClient(t, server)

		resp, err := c.Layout("Contacts").ForRecord("5").Duplicate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "6", resp.RecordID)

		last := server.Last(t)
		assert.Equal(t, http.MethodPost, last.Method)
		assert.Equal(t, "/layouts/Contacts/records/5", last.Path)
		assert.Equal(t, "application/json", last.ContentType)
	})
}

func TestClient_ExecuteScript(t *testing.T) {
	t.Parallel()

	server := newFakeServer(t, func(writer http.ResponseWriter, req recordedRequest) {
		writeEnvelope(writer, http.StatusOK, "0", "OK", map[string]string{"scriptResult": "hello", "scriptError": "0"})
	})
	c := newTestClient(t, server)

	resp, err := c.Layout("Contacts").ExecuteScript(context.Background(), "Say Hi", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.ScriptResult)
	assert.Equal(t, "0", resp.ScriptError)

	last := server.Last(t)
	assert.Equal(t, http.MethodGet, last.Method)
	assert.Equal(t, "/layouts/Contacts/script/Say%20Hi", last.Path)
	assert.Equal(t, "Ada", last.Query.Get("script.param"))
}

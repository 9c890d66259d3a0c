package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/PreChart2DB/internal/config"
	"github.com/JonMunkholm/PreChart2DB/internal/core"
	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
)

const peopleCSV = "id,name,score\n1,Alice,9.5\n2,Bob,7\n"

type testClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Name: "PreChart2DB", Version: "test"},
		Database: config.DatabaseConfig{
			Driver:         dbsync.DriverSQLite,
			Name:           "web",
			DataDir:        t.TempDir(),
			IdentityColumn: "row_id",
			BatchSize:      100,
			Timeout:        time.Minute,
		},
		Upload:        config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 1, MaxWaitTime: time.Second},
		Session:       config.SessionConfig{IdleTimeout: time.Hour, CookieName: "sid"},
		Visualization: config.VisualizationConfig{TopN: 10, HeadRows: 5, UniqueLimit: 50, HistogramBins: 5},
	}

	srv := NewServer(core.NewService(cfg), cfg)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

func (c *testClient) do(req *http.Request) (int, string) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, string(body)
}

func (c *testClient) get(path string) (int, string) {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *testClient) postForm(path string, form url.Values, accept string) (int, string) {
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return c.do(req)
}

func (c *testClient) upload(name, content string) (int, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(c.t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.WriteField("delimiter", ","))
	require.NoError(c.t, mw.WriteField("encoding", "utf-8"))
	require.NoError(c.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, c.base+"/upload", &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func (c *testClient) exportTable() tableJSON {
	c.t.Helper()
	status, body := c.get("/api/table")
	require.Equal(c.t, http.StatusOK, status, body)
	var out tableJSON
	require.NoError(c.t, json.Unmarshal([]byte(body), &out))
	return out
}

func TestHealth(t *testing.T) {
	c := newTestClient(t)
	status, body := c.get("/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestPagesRenderWithoutTable(t *testing.T) {
	c := newTestClient(t)
	for _, path := range []string{"/", "/analysis", "/settings", "/status"} {
		status, body := c.get(path)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Contains(t, body, "PreChart2DB", path)
	}
}

func TestUploadAndExport(t *testing.T) {
	c := newTestClient(t)

	status, body := c.upload("people.csv", peopleCSV)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "people.csv")
	assert.Contains(t, body, "Alice")

	out := c.exportTable()
	assert.Equal(t, "people", out.Table)
	assert.Equal(t, []columnJSON{{"id", "int"}, {"name", "string"}, {"score", "float"}}, out.Columns)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, []any{float64(1), "Alice", 9.5}, out.Rows[0])
}

func TestUploadUnsupportedFormatShowsFlash(t *testing.T) {
	c := newTestClient(t)
	status, body := c.upload("notes.txt", "hello")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "FILE002")
}

func TestExportWithoutTable(t *testing.T) {
	c := newTestClient(t)
	status, body := c.get("/api/table")
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body, `"code":"TBL002"`)
}

func TestEditRowsAndColumns(t *testing.T) {
	c := newTestClient(t)
	c.upload("people.csv", peopleCSV)

	c.postForm("/table/rows/1", url.Values{"c0": {"2"}, "c1": {"Robert"}, "c2": {"7"}}, "")
	c.postForm("/table/rows", url.Values{"c0": {"3"}, "c1": {"Carol"}}, "")
	c.postForm("/table/rows/0/delete", nil, "")
	c.postForm("/table/columns/0/kind", url.Values{"kind": {"string"}}, "")
	c.postForm("/table/name", url.Values{"name": {" staff list "}}, "")

	out := c.exportTable()
	assert.Equal(t, "staff_list", out.Table)
	assert.Equal(t, "string", out.Columns[0].Kind)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, []any{"2", "Robert", float64(7)}, out.Rows[0])
	assert.Equal(t, []any{"3", "Carol", nil}, out.Rows[1])
}

func TestEditInvalidValueShowsFlash(t *testing.T) {
	c := newTestClient(t)
	c.upload("people.csv", peopleCSV)

	status, body := c.postForm("/table/rows/0", url.Values{"c0": {"one"}, "c1": {"Alice"}, "c2": {"9.5"}}, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "SCH003")
	assert.Equal(t, float64(1), c.exportTable().Rows[0][0])
}

func TestSaveRowKeepsCellsMissingFromForm(t *testing.T) {
	c := newTestClient(t)
	c.upload("people.csv", peopleCSV)

	status, _ := c.postForm("/table/rows/1", url.Values{"c1": {"Robert"}}, "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = c.postForm("/table/rows/0", url.Values{}, "")
	assert.Equal(t, http.StatusOK, status)

	out := c.exportTable()
	require.Len(t, out.Rows, 2)
	assert.Equal(t, []any{float64(1), "Alice", 9.5}, out.Rows[0])
	assert.Equal(t, []any{float64(2), "Robert", float64(7)}, out.Rows[1])
}

func TestEditCellAPI(t *testing.T) {
	c := newTestClient(t)
	c.upload("people.csv", peopleCSV)

	req, err := http.NewRequest(http.MethodPost, c.base+"/api/table/cell", strings.NewReader(`{"row":0,"col":2,"value":"3.25"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	status, body := c.do(req)
	assert.Equal(t, http.StatusOK, status, body)
	assert.JSONEq(t, `{"row":0,"col":2,"value":"3.25"}`, body)

	req, err = http.NewRequest(http.MethodPost, c.base+"/api/table/cell", strings.NewReader(`{"row":9,"col":0,"value":"1"}`))
	require.NoError(t, err)
	status, body = c.do(req)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "TBL003")

	req, err = http.NewRequest(http.MethodPost, c.base+"/api/table/cell", strings.NewReader(`{"cell":1}`))
	require.NoError(t, err)
	status, body = c.do(req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "REQ001")
}

func TestOverwriteAndAppend(t *testing.T) {
	c := newTestClient(t)
	c.upload("people.csv", peopleCSV)

	const asJSON = "application/json"
	var res resultResponse

	// Confirming without a request is refused.
	status, body := c.postForm("/db/overwrite/confirm", nil, asJSON)
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.False(t, res.Success)
	assert.Equal(t, "WRT002", res.Code)
	assert.NotEqual(t, http.StatusOK, status)

	_, body = c.postForm("/db/overwrite", nil, "")
	assert.Contains(t, body, "/db/overwrite/confirm")

	status, body = c.postForm("/db/overwrite/confirm", nil, asJSON)
	require.Equal(t, http.StatusOK, status, body)
	res = resultResponse{}
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "people", res.Table)

	c.postForm("/table/rows", url.Values{"c0": {"3"}, "c1": {"Carol"}, "c2": {"5"}}, "")

	status, body = c.postForm("/db/append", nil, asJSON)
	require.Equal(t, http.StatusOK, status, body)
	res = resultResponse{}
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, "Of 3 rows in the file, 1 rows inserted, 2 skipped", res.Message)

	// Without JSON the result becomes a flash notice on the dashboard.
	status, body = c.postForm("/db/append", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "0 rows inserted, 3 skipped")
}

func TestAppendWithoutTable(t *testing.T) {
	c := newTestClient(t)
	status, body := c.postForm("/db/append", nil, "application/json")
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body, `"code":"TBL002"`)
}

func TestSettingsKeepPassword(t *testing.T) {
	c := newTestClient(t)

	form := url.Values{
		"driver":   {"mysql"},
		"host":     {"db.internal"},
		"port":     {"3307"},
		"user":     {"loader"},
		"password": {"s3cret"},
		"database": {"sales"},
	}
	status, body := c.postForm("/settings", form, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Connection settings saved.")
	assert.NotContains(t, body, "s3cret")

	form.Set("port", "abc")
	_, body = c.postForm("/settings", form, "")
	assert.Contains(t, body, "REQ001")

	form.Set("port", "3307")
	form.Set("driver", "oracle")
	_, body = c.postForm("/settings", form, "")
	assert.Contains(t, body, "REQ001")
}

func TestStatusAPI(t *testing.T) {
	c := newTestClient(t)
	c.upload("people.csv", peopleCSV)

	status, body := c.get("/api/status")
	require.Equal(t, http.StatusOK, status)

	var out struct {
		Messages []string `json:"messages"`
		Sessions int      `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, 1, out.Sessions)
	assert.Contains(t, out.Messages, "File read and types converted. 2 rows, columns: id, name, score")
}

func TestAnalysisPage(t *testing.T) {
	c := newTestClient(t)
	c.upload("people.csv", peopleCSV)

	status, body := c.get("/analysis?column=score")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "score")

	_, body = c.get("/analysis?column=missing")
	assert.Contains(t, body, "TBL003")
}

func TestAuditAPI(t *testing.T) {
	c := newTestClient(t)
	c.upload("people.csv", peopleCSV)
	c.postForm("/table/rows/0", url.Values{"c0": {"1"}, "c1": {"Alicia"}, "c2": {"9.5"}}, "")
	c.postForm("/table/rows/1/delete", nil, "")

	status, body := c.get("/api/audit")
	require.Equal(t, http.StatusOK, status)
	var entries []core.AuditEntry
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, core.ActionRowDelete, entries[0].Action)
	assert.Equal(t, core.ActionCellEdit, entries[1].Action)
	assert.Equal(t, "Alicia", entries[1].NewValue)
	assert.Equal(t, core.ActionLoad, entries[2].Action)

	_, body = c.get("/api/audit?action=cell_edit")
	entries = nil
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	assert.Len(t, entries, 1)

	// Another client sees only its own session.
	other := newTestClient(t)
	_, body = other.get("/api/audit")
	assert.JSONEq(t, "[]", body)

	_, body = c.get("/status")
	assert.Contains(t, body, "Recent changes")
	assert.Contains(t, body, "Alice → Alicia")
}

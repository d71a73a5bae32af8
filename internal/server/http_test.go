package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/export"
)

func newHTTPServer(t *testing.T, opts ...HTTPOption) *httptest.Server {
	t.Helper()
	svc, repo := newService(t)
	opts = append([]HTTPOption{WithExporter(export.NewService(repo, nil))}, opts...)
	srv := httptest.NewServer(NewHTTPHandler(svc, nil, opts...))
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func TestHTTPProcessAndGet(t *testing.T) {
	srv := newHTTPServer(t)

	resp, err := http.Post(srv.URL+"/v1/documents?filename=receipt.jpg", "application/octet-stream", strings.NewReader("total 9.99"))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	loc := resp.Header.Get("Location")
	body := decodeBody(t, resp)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/v1/documents/"+id, loc)
	assert.Equal(t, "total 9.99", body["full_text"])
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))

	resp, err = http.Get(srv.URL + loc)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "receipt.jpg", body["filename"])
	assert.Len(t, body["pages"], 1)

	resp, err = http.Get(srv.URL + "/v1/documents?limit=5")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody(t, resp)["documents"], 1)
}

func TestHTTPErrors(t *testing.T) {
	srv := newHTTPServer(t, WithMaxUploadBytes(8))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing filename", http.MethodPost, "/v1/documents", "x", http.StatusBadRequest},
		{"unsupported", http.MethodPost, "/v1/documents?filename=a.bin", "bad", http.StatusUnsupportedMediaType},
		{"too large", http.MethodPost, "/v1/documents?filename=a.png", "0123456789", http.StatusRequestEntityTooLarge},
		{"bad id", http.MethodGet, "/v1/documents/nope", "", http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/v1/documents/6f1c2f4e-5a7b-4c1d-9e2f-3a4b5c6d7e8f", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, decodeBody(t, resp)["error"])
		})
	}
}

func TestHTTPHealthAndExport(t *testing.T) {
	srv := newHTTPServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"vision": false, "ocr": true, "direct_text": false}, body["capabilities"])

	_, err = http.Post(srv.URL+"/v1/documents?filename=a.png", "application/octet-stream", bytes.NewReader([]byte("abc")))
	require.NoError(t, err)

	resp, err = http.Get(srv.URL + "/v1/exports/documents.xlsx")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(common.ConversionFailedError("render", errors.New("x"))))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(common.ErrEmptyDocument))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

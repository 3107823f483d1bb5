package http_request

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/invoke"
)

func newInvoker(t *testing.T, m *Module) *invoke.GoInvoker {
	t.Helper()
	inv := invoke.NewGoInvoker()
	m.Register(inv)
	return inv
}

func descriptorByName(t *testing.T, inv *invoke.GoInvoker, name string) fn.Descriptor {
	t.Helper()
	for _, d := range inv.Functions() {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("function %q is not registered", name)
	return fn.Descriptor{}
}

func TestHTTPGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	inv := newInvoker(t, &Module{Client: srv.Client()})
	d := descriptorByName(t, inv, "http_get")

	out := make(invoke.Args, 2)
	in := invoke.Args{cty.StringVal(srv.URL)}
	require.NoError(t, inv.Invoke(context.Background(), invoke.NewCall(uuid.New(), "http_get"), d, in, out))

	assert.Equal(t, cty.NumberIntVal(200), out[0])
	assert.Equal(t, cty.StringVal(`{"ok":true}`), out[1])
}

func TestHTTPPostSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"name":"sum"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, "created")
	}))
	defer srv.Close()

	inv := newInvoker(t, &Module{Client: srv.Client()})
	d := descriptorByName(t, inv, "http_post")

	out := make(invoke.Args, 2)
	in := invoke.Args{cty.StringVal(srv.URL), cty.StringVal(`{"name":"sum"}`)}
	require.NoError(t, inv.Invoke(context.Background(), invoke.NewCall(uuid.New(), "http_post"), d, in, out))

	assert.Equal(t, cty.NumberIntVal(201), out[0])
	assert.Equal(t, cty.StringVal("created"), out[1])
}

func TestHTTPGetReportsNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	inv := newInvoker(t, &Module{Client: srv.Client()})
	d := descriptorByName(t, inv, "http_get")

	out := make(invoke.Args, 2)
	in := invoke.Args{cty.StringVal(srv.URL)}
	require.NoError(t, inv.Invoke(context.Background(), invoke.NewCall(uuid.New(), "http_get"), d, in, out))

	// A reachable server is not an error; the status pin carries the outcome.
	assert.Equal(t, cty.NumberIntVal(404), out[0])
}

func TestHTTPGetFailsOnUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	inv := newInvoker(t, &Module{})
	d := descriptorByName(t, inv, "http_get")

	out := make(invoke.Args, 2)
	err := inv.Invoke(context.Background(), invoke.NewCall(uuid.New(), "http_get"), d, invoke.Args{cty.StringVal(url)}, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute request")
}

func TestHTTPPutFileStreamsUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes":6}`), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, int64(11), r.ContentLength)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"nodes":6}`, string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	inv := newInvoker(t, &Module{Client: srv.Client()})
	d := descriptorByName(t, inv, "http_put_file")

	out := make(invoke.Args, 1)
	in := invoke.Args{cty.StringVal(srv.URL), cty.StringVal(path)}
	require.NoError(t, inv.Invoke(context.Background(), invoke.NewCall(uuid.New(), "http_put_file"), d, in, out))

	assert.Equal(t, cty.NumberIntVal(200), out[0])
}

func TestHTTPPutFileFailsOnRejectedUpload(t *testing.T) {
	// No extension, so the Content-Type falls back to the generic binary type.
	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, []byte("raw bytes"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		http.Error(w, "expired", http.StatusForbidden)
	}))
	defer srv.Close()

	inv := newInvoker(t, &Module{Client: srv.Client()})
	d := descriptorByName(t, inv, "http_put_file")

	out := make(invoke.Args, 1)
	in := invoke.Args{cty.StringVal(srv.URL), cty.StringVal(path)}
	err := inv.Invoke(context.Background(), invoke.NewCall(uuid.New(), "http_put_file"), d, in, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload failed with status")
}

func TestHTTPPutFileFailsOnMissingFile(t *testing.T) {
	inv := newInvoker(t, &Module{})
	d := descriptorByName(t, inv, "http_put_file")

	out := make(invoke.Args, 1)
	in := invoke.Args{cty.StringVal("http://localhost:1"), cty.StringVal(filepath.Join(t.TempDir(), "absent.bin"))}
	err := inv.Invoke(context.Background(), invoke.NewCall(uuid.New(), "http_put_file"), d, in, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}

func TestManifestMatchesRegisteredHandlers(t *testing.T) {
	src, err := os.ReadFile("manifest.hcl")
	require.NoError(t, err)

	manifests, err := fn.ParseManifest(context.Background(), src, "manifest.hcl")
	require.NoError(t, err)

	resolved, err := fn.BindManifests(context.Background(), manifests, newInvoker(t, &Module{}).Functions())
	require.NoError(t, err)
	assert.Len(t, resolved, 3)
}

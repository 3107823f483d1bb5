// Package http_request lets graphs call HTTP endpoints.
package http_request

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/dtype"
	"github.com/csso/fngraph/internal/fn"
	"github.com/csso/fngraph/internal/invoke"
)

// Module implements the invoke.Module interface for this package. A nil
// Client falls back to a shared default with a 30 second timeout.
type Module struct {
	Client *http.Client
}

var defaultClient = &http.Client{Timeout: 30 * time.Second}

func (m *Module) client() *http.Client {
	if m.Client != nil {
		return m.Client
	}
	return defaultClient
}

func (m *Module) do(ctx context.Context, method, url string, body io.Reader, out invoke.Args) error {
	slog.Info("Making HTTP request", "method", method, "url", url)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	slog.Info("Received HTTP response", "status", resp.Status)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	out[0] = cty.NumberIntVal(int64(resp.StatusCode))
	out[1] = cty.StringVal(string(bodyBytes))
	return nil
}

// onRunHTTPGet is the handler for the 'http_get' function.
func (m *Module) onRunHTTPGet(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	url, err := in.String(0)
	if err != nil {
		return err
	}
	return m.do(ctx, http.MethodGet, url, nil, out)
}

// onRunHTTPPost is the handler for the 'http_post' function.
func (m *Module) onRunHTTPPost(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	url, err := in.String(0)
	if err != nil {
		return err
	}
	body, err := in.String(1)
	if err != nil {
		return err
	}
	return m.do(ctx, http.MethodPost, url, strings.NewReader(body), out)
}

// onRunHTTPPutFile is the handler for the 'http_put_file' function. It
// streams the file from disk instead of buffering it in memory, so large
// artifacts upload at a constant memory cost.
func (m *Module) onRunHTTPPutFile(ctx context.Context, call *invoke.Call, in invoke.Args, out invoke.Args) error {
	url, err := in.String(0)
	if err != nil {
		return err
	}
	path, err := in.String(1)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	slog.Info("Uploading file", "url", url, "path", path, "size", info.Size(), "contentType", contentType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, file)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = info.Size()

	resp, err := m.client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	slog.Info("Received HTTP response", "status", resp.Status)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload failed with status: %s", resp.Status)
	}

	out[0] = cty.NumberIntVal(int64(resp.StatusCode))
	return nil
}

// Register registers the pack's handlers with the invoker.
func (m *Module) Register(inv *invoke.GoInvoker) {
	inv.Register(fn.Descriptor{
		Name:   "http_get",
		Inputs: []fn.Arg{{Name: "url", Type: dtype.String}},
		Outputs: []fn.Arg{
			{Name: "status", Type: dtype.Int},
			{Name: "body", Type: dtype.String},
		},
	}, m.onRunHTTPGet)
	inv.Register(fn.Descriptor{
		Name: "http_post",
		Inputs: []fn.Arg{
			{Name: "url", Type: dtype.String},
			{Name: "body", Type: dtype.String},
		},
		Outputs: []fn.Arg{
			{Name: "status", Type: dtype.Int},
			{Name: "body", Type: dtype.String},
		},
	}, m.onRunHTTPPost)
	inv.Register(fn.Descriptor{
		Name: "http_put_file",
		Inputs: []fn.Arg{
			{Name: "url", Type: dtype.String},
			{Name: "path", Type: dtype.String},
		},
		Outputs: []fn.Arg{
			{Name: "status", Type: dtype.Int},
		},
	}, m.onRunHTTPPutFile)
}

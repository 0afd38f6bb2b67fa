package devices

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/brettbedarf/filenode/filesystem"
)

type HTTPMethod = string

const (
	HTTPMethodGet  HTTPMethod = "GET"
	HTTPMethodHead HTTPMethod = "HEAD"
)

// HTTPClient is the subset of [http.Client] used by [HTTPDevice]
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPDevice is a read-only device resolving device paths against a base URL.
// HTTP has no listing, so directories cannot be enumerated; files are reached
// by explicit paths and copied to writable devices.
type HTTPDevice struct {
	base    *url.URL
	headers map[string]string
	client  HTTPClient
}

// NewHTTPDevice validates baseURL and returns a device using [http.DefaultClient]
func NewHTTPDevice(baseURL string, headers map[string]string) (*HTTPDevice, error) {
	return newHTTPDevice(baseURL, headers, http.DefaultClient)
}

func newHTTPDevice(baseURL string, headers map[string]string, client HTTPClient) (*HTTPDevice, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing host", baseURL)
	}
	if u.User != nil {
		return nil, fmt.Errorf("invalid url %q: user info not allowed", baseURL)
	}
	return &HTTPDevice{base: u, headers: headers, client: client}, nil
}

func (h *HTTPDevice) Name() string {
	return "http:" + h.base.Host
}

func (h *HTTPDevice) Capabilities() filesystem.Capabilities {
	return filesystem.Capabilities{}
}

func (h *HTTPDevice) resolve(p string) string {
	u := *h.base
	u.Path = path.Join("/", h.base.Path, p)
	return u.String()
}

func (h *HTTPDevice) do(ctx context.Context, method HTTPMethod, p string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.resolve(p), nil)
	if err != nil {
		return nil, err
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, &fs.PathError{Op: method, Path: p, Err: fs.ErrNotExist}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, &fs.PathError{Op: method, Path: p, Err: fs.ErrPermission}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: unexpected status %s", method, p, resp.Status)
	}
	return resp, nil
}

func (h *HTTPDevice) Stat(ctx context.Context, p string) (filesystem.Props, error) {
	name := path.Base(path.Clean("/" + p))
	if path.Clean("/"+p) == "/" {
		return filesystem.Props{Name: name, Mode: fs.ModeDir | 0o555}, nil
	}
	resp, err := h.do(ctx, HTTPMethodHead, p)
	if err != nil {
		return filesystem.Props{}, err
	}
	defer resp.Body.Close()

	props := filesystem.Props{Name: name, Mode: 0o444}
	if resp.ContentLength > 0 {
		props.Size = resp.ContentLength
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			props.ModTime = t
		}
	}
	return props, nil
}

func (h *HTTPDevice) List(context.Context, string) ([]filesystem.Props, error) {
	return nil, filesystem.ErrNotSupported
}

func (h *HTTPDevice) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	resp, err := h.do(ctx, HTTPMethodGet, p)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// HTTP sources are read-only

func (h *HTTPDevice) OpenWrite(context.Context, string) (io.WriteCloser, error) {
	return nil, filesystem.ErrNotSupported
}

func (h *HTTPDevice) Delete(context.Context, string) error {
	return filesystem.ErrNotSupported
}

func (h *HTTPDevice) Mkdir(context.Context, string, bool) error {
	return filesystem.ErrNotSupported
}

func (h *HTTPDevice) Rename(context.Context, string, string) error {
	return filesystem.ErrNotSupported
}

func (h *HTTPDevice) Copy(context.Context, string, string) error {
	return filesystem.ErrNotSupported
}

func (h *HTTPDevice) SetModTime(context.Context, string, time.Time) error {
	return filesystem.ErrNotSupported
}

func (h *HTTPDevice) Chmod(context.Context, string, fs.FileMode) error {
	return filesystem.ErrNotSupported
}

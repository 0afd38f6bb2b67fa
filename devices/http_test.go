package devices

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/brettbedarf/filenode/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func response(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// request matches a request by method and URL
func request(method, url string) any {
	return mock.MatchedBy(func(req *http.Request) bool {
		return req.Method == method && req.URL.String() == url
	})
}

func TestNewHTTPDevice_URLValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url     string
		wantErr bool
		desc    string
	}{
		// Valid cases
		{"http://test.com", false, "basic HTTP URL"},
		{"https://test.com", false, "basic HTTPS URL"},
		{"  http://test.com   ", false, "URL with whitespace"},
		{"http://test.com/path?arg=1&arg2=2", false, "URL with path and query"},
		{"http://test.com:8080", false, "URL with port"},
		{"http://localhost:8080/test", false, "localhost with port"},
		{"http://123.123.123.123/test", false, "IP address"},
		{"http://mylocalnet/test", false, "single label hostname"},

		// Invalid cases
		{"", true, "empty string"},
		{" ", true, "whitespace only"},
		{"_", true, "invalid character"},
		{"ftp://test.com", true, "different scheme rejected"},
		{"test.com", true, "missing scheme"},
		{"http://user@test.com/path", true, "URL with user info"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			dev, err := newHTTPDevice(tt.url, nil, &MockHTTPClient{})

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, dev)
			} else {
				require.NoError(t, err)
				require.NotNil(t, dev)
			}
		})
	}
}

func TestHTTPDevice_Stat(t *testing.T) {
	t.Parallel()
	client := &MockHTTPClient{}
	dev, err := newHTTPDevice("https://files.test/base", map[string]string{"Authorization": "Bearer x"}, client)
	require.NoError(t, err)
	modified := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	header := http.Header{}
	header.Set("Last-Modified", modified.Format(http.TimeFormat))
	client.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Method == HTTPMethodHead &&
			req.URL.String() == "https://files.test/base/dir/f.bin" &&
			req.Header.Get("Authorization") == "Bearer x"
	})).Return(response(http.StatusOK, "0123456789", header), nil)

	props, err := dev.Stat(context.Background(), "/dir/f.bin")

	require.NoError(t, err)
	assert.Equal(t, "f.bin", props.Name)
	assert.Equal(t, int64(10), props.Size)
	assert.True(t, props.ModTime.Equal(modified))
	assert.False(t, props.IsDir())
	client.AssertExpectations(t)

	root, err := dev.Stat(context.Background(), "/")
	require.NoError(t, err)
	assert.True(t, root.IsDir())
}

func TestHTTPDevice_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, fs.ErrNotExist},
		{http.StatusUnauthorized, fs.ErrPermission},
		{http.StatusForbidden, fs.ErrPermission},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			client := &MockHTTPClient{}
			dev, err := newHTTPDevice("http://files.test", nil, client)
			require.NoError(t, err)
			client.On("Do", mock.Anything).Return(response(tt.status, "", nil), nil)

			_, err = dev.Stat(context.Background(), "/x")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	client := &MockHTTPClient{}
	dev, err := newHTTPDevice("http://files.test", nil, client)
	require.NoError(t, err)
	client.On("Do", mock.Anything).Return(response(http.StatusBadGateway, "", nil), nil)
	_, err = dev.OpenRead(context.Background(), "/x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestHTTPDevice_OpenRead(t *testing.T) {
	t.Parallel()
	client := &MockHTTPClient{}
	dev, err := newHTTPDevice("http://files.test", nil, client)
	require.NoError(t, err)
	client.On("Do", request(HTTPMethodGet, "http://files.test/a.txt")).
		Return(response(http.StatusOK, "content", nil), nil)

	r, err := dev.OpenRead(context.Background(), "/a.txt")
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "content", string(b))
}

func TestHTTPDevice_NetworkError(t *testing.T) {
	t.Parallel()
	client := &MockHTTPClient{}
	dev, err := newHTTPDevice("http://files.test", nil, client)
	require.NoError(t, err)
	client.On("Do", mock.Anything).Return(nil, assert.AnError)

	_, err = dev.OpenRead(context.Background(), "/a.txt")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestHTTPDevice_ReadOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev, err := newHTTPDevice("http://files.test", nil, &MockHTTPClient{})
	require.NoError(t, err)

	assert.False(t, dev.Capabilities().Writable)
	_, err = dev.OpenWrite(ctx, "/a")
	assert.ErrorIs(t, err, filesystem.ErrNotSupported)
	assert.ErrorIs(t, dev.Delete(ctx, "/a"), filesystem.ErrNotSupported)
	assert.ErrorIs(t, dev.Mkdir(ctx, "/a", true), filesystem.ErrNotSupported)
	_, err = dev.List(ctx, "/")
	assert.ErrorIs(t, err, filesystem.ErrNotSupported)
}

package twincore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogEvictsOldest(t *testing.T) {
	rl := NewRequestLog(3)
	for _, p := range []string{"/a", "/b", "/c", "/d", "/e"} {
		rl.Add(RequestLogEntry{Path: p})
	}

	got := rl.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, "/c", got[0].Path)
	assert.Equal(t, "/e", got[2].Path)
	assert.Equal(t, uint64(5), got[2].Seq)
	assert.Equal(t, 3, rl.Len())

	got[0].Path = "/changed"
	assert.Equal(t, "/c", rl.Entries()[0].Path)
}

func TestRequestLogClearKeepsSequence(t *testing.T) {
	rl := NewRequestLog(10)
	rl.Add(RequestLogEntry{Path: "/x"})
	rl.Add(RequestLogEntry{Path: "/y"})
	rl.Clear()
	assert.Zero(t, rl.Len())
	assert.Empty(t, rl.Entries())

	assert.Equal(t, uint64(3), rl.Add(RequestLogEntry{Path: "/z"}))
}

func TestRequestLogFilter(t *testing.T) {
	rl := NewRequestLog(0) // clamped to one slot
	rl.Add(RequestLogEntry{Path: "/a"})
	rl.Add(RequestLogEntry{Path: "/b"})
	require.Len(t, rl.Entries(), 1)

	rl = NewRequestLog(20)
	rl.Add(RequestLogEntry{Method: "GET", Path: "/v1/products", StatusCode: 200})
	rl.Add(RequestLogEntry{Method: "PATCH", Path: "/v1/products/1", StatusCode: 200})
	rl.Add(RequestLogEntry{Method: "PATCH", Path: "/v1/products/9", StatusCode: 404})
	rl.Add(RequestLogEntry{Method: "GET", Path: "/v1/orders", StatusCode: 200})

	tests := []struct {
		name  string
		f     RequestFilter
		paths []string
	}{
		{"all", RequestFilter{}, []string{"/v1/products", "/v1/products/1", "/v1/products/9", "/v1/orders"}},
		{"method is case-insensitive", RequestFilter{Method: "patch"}, []string{"/v1/products/1", "/v1/products/9"}},
		{"path prefix", RequestFilter{PathPrefix: "/v1/products"}, []string{"/v1/products", "/v1/products/1", "/v1/products/9"}},
		{"status", RequestFilter{Status: 404}, []string{"/v1/products/9"}},
		{"limit keeps newest", RequestFilter{Limit: 2}, []string{"/v1/products/9", "/v1/orders"}},
		{"combined", RequestFilter{Method: "GET", Limit: 1}, []string{"/v1/orders"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var paths []string
			for _, e := range rl.Filter(tt.f) {
				paths = append(paths, e.Path)
			}
			assert.Equal(t, tt.paths, paths)
		})
	}
}

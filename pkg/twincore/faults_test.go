package twincore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultKey(t *testing.T) {
	assert.Equal(t, "/v1/orders", FaultKey("", "/v1/orders"))
	assert.Equal(t, "PATCH /v1/products/*", FaultKey("patch", "/v1/products/*"))
}

func TestFaultRegistryMatching(t *testing.T) {
	fr := NewFaultRegistry()
	fr.Set("/v1/products/*", FaultConfig{StatusCode: 500})
	fr.Set("PATCH /v1/products/*", FaultConfig{StatusCode: 409})
	fr.Set("/v1/products/1", FaultConfig{StatusCode: 503})

	tests := []struct {
		method, path string
		want         int // 0 means no fault
	}{
		{"GET", "/v1/products/1", 503},
		{"PATCH", "/v1/products/1", 503},
		{"PATCH", "/v1/products/2", 409},
		{"GET", "/v1/products/2", 500},
		{"GET", "/v1/products", 0},
		{"GET", "/v1/orders", 0},
	}
	for _, tt := range tests {
		f := fr.Check(tt.method, tt.path)
		if tt.want == 0 {
			assert.Nil(t, f, "%s %s", tt.method, tt.path)
			continue
		}
		require.NotNil(t, f, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.want, f.StatusCode, "%s %s", tt.method, tt.path)
	}
}

func TestFaultRegistryTimes(t *testing.T) {
	fr := NewFaultRegistry()
	fr.Set("POST /v1/offers", FaultConfig{StatusCode: 502, Times: 2})

	assert.NotNil(t, fr.Check("POST", "/v1/offers"))
	assert.Equal(t, 1, fr.All()["POST /v1/offers"].Times)
	assert.NotNil(t, fr.Check("POST", "/v1/offers"))
	assert.Nil(t, fr.Check("POST", "/v1/offers"))
	assert.Empty(t, fr.All())
}

func TestFaultRegistryRate(t *testing.T) {
	fr := NewFaultRegistry()
	roll := 0.5
	fr.rand = func() float64 { return roll }

	fr.Set("/v1/orders", FaultConfig{StatusCode: 500, Rate: 0.25})
	assert.Nil(t, fr.Check("GET", "/v1/orders"))
	roll = 0.1
	assert.NotNil(t, fr.Check("GET", "/v1/orders"))

	fr.Set("/v1/orders", FaultConfig{StatusCode: 500, Rate: 7})
	assert.Equal(t, 1.0, fr.All()["/v1/orders"].Rate)
}

func TestFaultRegistryRemoveAndReset(t *testing.T) {
	fr := NewFaultRegistry()
	fr.Set("/v1/products", FaultConfig{StatusCode: 503})

	all := fr.All()
	all["/extra"] = FaultConfig{}
	assert.Len(t, fr.All(), 1)

	assert.True(t, fr.Remove("/v1/products"))
	assert.False(t, fr.Remove("/v1/products"))

	fr.Set("/a", FaultConfig{StatusCode: 500})
	fr.Set("/b", FaultConfig{StatusCode: 500})
	fr.Reset()
	assert.Empty(t, fr.All())
}

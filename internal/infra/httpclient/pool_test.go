package httpclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPooledClient_DefaultSizing(t *testing.T) {
	client := NewPooledClient(5 * time.Second)

	assert.Equal(t, 5*time.Second, client.Timeout)
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, defaultIdlePerHost, transport.MaxIdleConnsPerHost)
	assert.Equal(t, 2*defaultIdlePerHost, transport.MaxIdleConns)
	assert.True(t, transport.ForceAttemptHTTP2)
}

func TestNewPooledClientWithSize_CustomBudget(t *testing.T) {
	client := NewPooledClientWithSize(time.Second, 30)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 30, transport.MaxIdleConnsPerHost)
	assert.Equal(t, 60, transport.MaxIdleConns)
}

func TestNewPooledClientWithSize_NonPositiveFallsBack(t *testing.T) {
	client := NewPooledClientWithSize(time.Second, 0)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, defaultIdlePerHost, transport.MaxIdleConnsPerHost)
}

// SPDX-License-Identifier: AGPL-3.0-only
package dispatch

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	urlpkg "net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netwebdave/autodavesave/internal/config"
	"github.com/netwebdave/autodavesave/internal/errors"
)

// setupTestHost starts an endpoint recording requests and returns a host
// config pointing at it
func setupTestHost(t *testing.T, status int) (config.HostConfig, chan *http.Request) {
	t.Helper()
	received := make(chan *http.Request, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)

	u, err := urlpkg.Parse(ts.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := config.DefaultConfig().Host
	cfg.Address = host
	cfg.Port = port
	cfg.RequestTimeout = time.Second
	return cfg, received
}

func TestPostCommandSendsRequest(t *testing.T) {
	cfg, received := setupTestHost(t, http.StatusOK)
	d := NewHTTPDispatcher(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Close()

	require.NoError(t, d.PostCommand(config.SaveAllCommandID))

	select {
	case req := <-received:
		assert.Equal(t, "/command", req.URL.Path)
		q := req.URL.Query()
		assert.Equal(t, "41007", q.Get("id"))
		assert.Equal(t, Sender, q.Get("sender"))
	case <-time.After(2 * time.Second):
		t.Fatal("no request received")
	}
}

func TestPostCommandQueueFull(t *testing.T) {
	cfg := config.DefaultConfig().Host
	cfg.QueueSize = 1
	d := NewHTTPDispatcher(cfg, nil)
	// Worker not started: the queue only fills.

	require.NoError(t, d.PostCommand(1))
	err := d.PostCommand(2)
	code, ok := errors.DispatchCode(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeQueueFull, code)
}

func TestPostCommandAfterClose(t *testing.T) {
	d := NewHTTPDispatcher(config.DefaultConfig().Host, nil)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	code, ok := errors.DispatchCode(d.PostCommand(config.SaveAllCommandID))
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidWindowHandle, code)
}

func TestSendReportsHTTPFailure(t *testing.T) {
	cfg, received := setupTestHost(t, http.StatusServiceUnavailable)
	d := NewHTTPDispatcher(cfg, nil)

	err := d.send(context.Background(), config.SaveAllCommandID)
	assert.ErrorContains(t, err, "503")
	<-received
}

func TestUnspecifiedAddressUsesLocalhost(t *testing.T) {
	cfg := config.DefaultConfig().Host
	cfg.Address = "0.0.0.0"
	cfg.Port = 9000
	d := NewHTTPDispatcher(cfg, nil)
	assert.Equal(t, "http://localhost:9000/command", d.baseURL)
}

package healthcheck_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/stackprof/pkg/healthcheck"
)

func TestServer_AnswersAfterReadiness(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "hc.sock")
	server := healthcheck.NewServer(socketPath, log.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, server.Listen(ctx))
	defer server.Shutdown()

	// A client connecting before readiness is held, not answered.
	early, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer early.Close()

	buf := make([]byte, 1)
	require.NoError(t, early.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, err = early.Read(buf)
	require.Error(t, err)

	server.NotifyReadiness()

	// The held connection is answered once readiness is marked.
	require.NoError(t, early.SetReadDeadline(time.Now().Add(time.Second)))
	n, err := early.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, byte(healthcheck.ReadyMsg), buf[0])

	// And so is any later one.
	late, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer late.Close()

	require.NoError(t, late.SetReadDeadline(time.Now().Add(time.Second)))
	n, err = late.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, byte(healthcheck.ReadyMsg), buf[0])
}

func TestServer_ListenReplacesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "hc.sock")
	require.NoError(t, os.WriteFile(socketPath, nil, 0o600))

	server := healthcheck.NewServer(socketPath, log.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, server.Listen(ctx))
	require.NoError(t, server.Shutdown())
}

func TestServer_ShutdownRemovesSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "hc.sock")
	server := healthcheck.NewServer(socketPath, log.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, server.Listen(ctx))
	require.NoError(t, server.Shutdown())

	_, err := os.Stat(socketPath)
	require.True(t, os.IsNotExist(err))

	_, err = net.Dial("unix", socketPath)
	require.Error(t, err)
}

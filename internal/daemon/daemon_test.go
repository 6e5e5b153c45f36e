package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/tgsift/internal/api"
	"github.com/matheus3301/tgsift/internal/bus"
	"github.com/matheus3301/tgsift/internal/client"
	"github.com/matheus3301/tgsift/internal/config"
	"github.com/matheus3301/tgsift/internal/profile"
	"github.com/matheus3301/tgsift/internal/remote/remotetest"
	"github.com/matheus3301/tgsift/internal/status"
	intsync "github.com/matheus3301/tgsift/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

// testHome points TGSIFT_HOME at a short directory under /tmp; Unix socket
// paths are limited to about 104 bytes on macOS.
func testHome(t *testing.T) {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "tgs-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv("TGSIFT_HOME", dir)
}

func exportConfig(t *testing.T) *config.Config {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "remote", "export", "testdata", "result.json"))
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Remote.ExportPath = path
	return cfg
}

func startDaemon(t *testing.T, p Params) *client.Client {
	t.Helper()
	app := fxtest.New(t, fx.NopLogger, Module(p))
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	c, err := client.New(profile.SocketPath(p.ProfileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitForState(t *testing.T, c *client.Client, want status.State) *api.StatusResponse {
	t.Helper()
	var last *api.StatusResponse
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		resp, err := c.Status(ctx, &api.StatusRequest{})
		if err != nil {
			return false
		}
		last = resp
		return resp.State == string(want)
	}, 5*time.Second, 20*time.Millisecond, "daemon never reached %s", want)
	return last
}

func TestFxModuleWiring(t *testing.T) {
	testHome(t)
	err := fx.ValidateApp(Module(Params{ProfileName: "fxtest", Config: config.Default()}))
	require.NoError(t, err)
}

func TestDaemonServesExport(t *testing.T) {
	testHome(t)
	c := startDaemon(t, Params{ProfileName: "test", Config: exportConfig(t)})

	st := waitForState(t, c, status.Ready)
	assert.Equal(t, "test", st.Profile)
	assert.Equal(t, "5001", st.Account)
	assert.Equal(t, config.DriverSQLite, st.CacheDriver)

	ctx := context.Background()
	dialogs, err := c.ListDialogs(ctx, &api.ListDialogsRequest{})
	require.NoError(t, err)
	require.Len(t, dialogs.Dialogs, 3)

	msgs, err := c.ListMessages(ctx, &api.ListMessagesRequest{DialogID: 1700, Filter: api.Filter{Media: "photo"}})
	require.NoError(t, err)
	require.Len(t, msgs.Messages, 1)
	assert.Equal(t, int64(5), msgs.Messages[0].ID)

	topics, err := c.ListTopics(ctx, &api.ListTopicsRequest{DialogID: 1700})
	require.NoError(t, err)
	require.NotEmpty(t, topics.Topics)
	assert.Equal(t, "Releases", topics.Topics[0].Title)

	st, err = c.Status(ctx, &api.StatusRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Dialogs)
	_, err = os.Stat(profile.CachePath("test"))
	assert.NoError(t, err)
}

func TestDaemonDegradedWithoutRemote(t *testing.T) {
	testHome(t)
	c := startDaemon(t, Params{ProfileName: "offline", Config: config.Default()})

	st := waitForState(t, c, status.Degraded)
	assert.Contains(t, st.Reason, "export_path")
	assert.Empty(t, st.Account)
}

func TestDaemonWithoutCache(t *testing.T) {
	testHome(t)
	cfg := config.Default()
	cfg.Cache.Driver = config.DriverNone
	fake := remotetest.New("42")
	c := startDaemon(t, Params{ProfileName: "nocache", Config: cfg, Remote: fake})

	st := waitForState(t, c, status.Ready)
	assert.Equal(t, config.DriverNone, st.CacheDriver)
	_, err := os.Stat(profile.CachePath("nocache"))
	assert.True(t, os.IsNotExist(err))
}

func TestDaemonStopRemovesSocketAndLock(t *testing.T) {
	testHome(t)
	p := Params{ProfileName: "stop", Config: config.Default(), Remote: remotetest.New("42")}
	app := fxtest.New(t, fx.NopLogger, Module(p))
	app.RequireStart()

	_, err := os.Stat(profile.SocketPath("stop"))
	require.NoError(t, err)

	app.RequireStop()
	_, err = os.Stat(profile.SocketPath("stop"))
	assert.True(t, os.IsNotExist(err), "socket left behind")
	_, err = os.Stat(profile.LockPath("stop"))
	assert.True(t, os.IsNotExist(err), "lock left behind")
}

// NewServer must take Params rather than a bare string, which fx cannot
// resolve, and honour the socket override.
func TestNewServerUsesSocketOverride(t *testing.T) {
	testHome(t)
	socketPath := filepath.Join(os.Getenv("TGSIFT_HOME"), "d.sock")

	b := bus.New()
	session := intsync.NewSession(nil, remotetest.New("1"), b, zap.NewNop(), intsync.Options{})
	svc := api.NewService("fxtest", config.DriverNone, status.NewMachine(b), session, nil)

	srv, err := NewServer(Params{ProfileName: "fxtest", SocketPath: socketPath}, zap.NewNop(), svc)
	require.NoError(t, err)

	info, err := os.Stat(socketPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	srv.Stop(context.Background())
	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err))
}

package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/signal-bridge/pkg/bridge"
	"github.com/morezero/signal-bridge/pkg/dispatcher"
	"github.com/morezero/signal-bridge/pkg/manifest"
	"github.com/morezero/signal-bridge/pkg/platform/static"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "query")
	assert.Contains(t, names, "manifest")
}

func TestQueryCmd_RequiresMethod(t *testing.T) {
	_, err := runCmd(t, "query")
	assert.Error(t, err)
}

func TestRootCmd_HelpHasNoDanglingReferences(t *testing.T) {
	assert.NotContains(t, newRootCmd().Long, "README")
}

func TestQueryCmd_RejectsUnlistedMethod(t *testing.T) {
	t.Setenv("COMMS_URL", "nats://127.0.0.1:1")
	t.Setenv("SIGNAL_MANIFEST_FILE", "")
	t.Setenv("REQUEST_TIMEOUT", "2s")

	_, err := runCmd(t, "query", "getBatteryLevel")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not listed in the manifest")
}

func TestQueryCmd_ValidArgs(t *testing.T) {
	assert.ElementsMatch(t, dispatcher.Methods(), newQueryCmd().ValidArgs)
}

func TestManifestCmd_Local(t *testing.T) {
	t.Setenv("SIGNAL_MANIFEST_FILE", "")
	t.Setenv("SIGNAL_SUBJECT", "cap.test.signal_strength.v1")

	out, err := runCmd(t, "manifest")
	require.NoError(t, err)

	var m manifest.Manifest
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "signal_strength", m.Channel)
	assert.Equal(t, "cap.test.signal_strength.v1", m.Subject)
	assert.ElementsMatch(t, dispatcher.Methods(), m.Methods)
}

func startBridge(t *testing.T) string {
	t.Helper()
	ns, err := commsserver.NewServer(&commsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(10*time.Second))
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	nc, err := comms.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	p := static.New(static.Fixture{Wifi: static.WifiFixture{Connected: true, RSSI: -60}})
	b, err := bridge.Attach(nc, p, bridge.Options{RequestTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { b.Detach() })
	require.NoError(t, nc.Flush())

	return ns.ClientURL()
}

func TestQueryCmd_AgainstBridge(t *testing.T) {
	t.Setenv("COMMS_URL", startBridge(t))
	t.Setenv("SIGNAL_SUBJECT", "")
	t.Setenv("SIGNAL_MANIFEST_FILE", "")
	t.Setenv("REQUEST_TIMEOUT", "2s")

	out, err := runCmd(t, "query", dispatcher.MethodWifiSignalStrength)
	require.NoError(t, err)

	var resp dispatcher.MethodResult
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Ok)
	// -60 dBm: (40 * 4) / 45 = 3
	assert.Equal(t, float64(3), resp.Result)
	assert.NotEmpty(t, resp.ID)
}

func TestManifestCmd_Remote(t *testing.T) {
	t.Setenv("COMMS_URL", startBridge(t))
	t.Setenv("SIGNAL_SUBJECT", "")
	t.Setenv("SIGNAL_MANIFEST_FILE", "")
	t.Setenv("REQUEST_TIMEOUT", "2s")

	out, err := runCmd(t, "manifest", "--remote")
	require.NoError(t, err)

	var m manifest.Manifest
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "cap.device.signal_strength.v1", m.Subject)
}

func TestQueryCmd_ForceSendsUnlistedMethod(t *testing.T) {
	t.Setenv("COMMS_URL", startBridge(t))
	t.Setenv("SIGNAL_SUBJECT", "")
	t.Setenv("SIGNAL_MANIFEST_FILE", "")
	t.Setenv("REQUEST_TIMEOUT", "2s")

	out, err := runCmd(t, "query", "--force", "getBatteryLevel")
	require.NoError(t, err)

	var resp dispatcher.MethodResult
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Ok)
	assert.True(t, resp.NotImplemented)
}

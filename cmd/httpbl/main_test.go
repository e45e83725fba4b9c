package main

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/httpbl/internal/httpbl/config"
	"github.com/haukened/httpbl/internal/httpbl/gateways/transport"
	"github.com/haukened/httpbl/internal/httpbl/services/lookup"
)

const testKey = "abcdefghijkl"

func testConfig() *config.AppConfig {
	cfg := config.DEFAULT_APP_CONFIG
	cfg.Log.Level = "error"
	cfg.Service.Key = testKey
	return &cfg
}

// fakeZone answers from a fixed table and records the transport it was built for.
func fakeZone(t *testing.T, answers map[string]string) *transport.TransportType {
	t.Helper()
	var built transport.TransportType
	origLoad, origResolver := loadConfig, newResolver
	t.Cleanup(func() { loadConfig, newResolver = origLoad, origResolver })

	loadConfig = func() (*config.AppConfig, error) { return testConfig(), nil }
	newResolver = func(tt transport.TransportType, _ transport.Options) (lookup.NameResolver, error) {
		built = tt
		return lookup.NameResolverFunc(func(_ context.Context, name string) (netip.Addr, error) {
			if a, ok := answers[name]; ok {
				return netip.MustParseAddr(a), nil
			}
			return netip.Addr{}, lookup.ErrNotListed
		}), nil
	}
	return &built
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

var listings = map[string]string{
	"abcdefghijkl.1.1.1.127.dnsbl.httpbl.org": "127.3.5.1",
	"abcdefghijkl.2.1.1.127.dnsbl.httpbl.org": "127.10.50.6",
	"abcdefghijkl.3.1.1.127.dnsbl.httpbl.org": "127.4.15.2",
}

func TestCheck_Human(t *testing.T) {
	built := fakeZone(t, listings)

	code, out, errOut := execute("check", "127.1.1.2", "127.1.1.1", "192.0.2.1", "127.1.1.3")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, transport.TransportSystem, *built)
	assert.Equal(t,
		"127.1.1.2\tlisted\tthreat=50 days=10 type=6\tSuspicious, Harvester, Comment Spammer\n"+
			"127.1.1.1\tsearch engine\tGoogle (5)\n"+
			"192.0.2.1\tnot blacklisted\n"+
			"127.1.1.3\tlisted\tthreat=15 days=4 type=2\tSuspicious\n",
		out)
}

func TestCheck_JSON(t *testing.T) {
	fakeZone(t, listings)

	code, out, errOut := execute("check", "--json", "127.1.1.2", "192.0.2.1")
	require.Equal(t, 0, code, errOut)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)

	assert.Equal(t, "127.1.1.2", got[0]["ip"])
	assert.EqualValues(t, 50, got[0]["threat_score"])
	assert.EqualValues(t, 10, got[0]["days_since_activity"])
	assert.Equal(t, []any{"Suspicious", "Harvester", "Comment Spammer"}, got[0]["classifications"])

	assert.Equal(t, "192.0.2.1", got[1]["ip"])
	assert.Equal(t, []any{"Not Blacklisted"}, got[1]["classifications"])
	assert.NotContains(t, got[1], "days_since_activity")
}

func TestCheck_RequiresArgs(t *testing.T) {
	fakeZone(t, listings)

	code, _, errOut := execute("check")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "requires at least 1 arg")
}

func TestAllow(t *testing.T) {
	fakeZone(t, listings)

	code, out, _ := execute("allow", "127.1.1.1", "127.1.1.2", "192.0.2.1", "127.1.1.3")
	assert.Equal(t, exitDenied, code)
	assert.Equal(t,
		"127.1.1.1\tallow\n"+
			"127.1.1.2\tdeny\n"+
			"192.0.2.1\tallow\n"+
			"127.1.1.3\tallow\n",
		out)
}

func TestAllow_AllAllowed(t *testing.T) {
	fakeZone(t, listings)

	code, out, _ := execute("allow", "127.1.1.1", "192.0.2.1")
	assert.Equal(t, 0, code)
	assert.Equal(t, "127.1.1.1\tallow\n192.0.2.1\tallow\n", out)
}

func TestAllow_ThresholdFlags(t *testing.T) {
	fakeZone(t, listings)

	code, out, _ := execute("allow", "--threat", "10", "127.1.1.3")
	assert.Equal(t, exitDenied, code)
	assert.Equal(t, "127.1.1.3\tdeny\n", out)

	code, out, _ = execute("allow", "--type-severity", "8", "127.1.1.2")
	assert.Equal(t, 0, code)
	assert.Equal(t, "127.1.1.2\tallow\n", out)
}

func TestAllow_ConfiguredThresholds(t *testing.T) {
	fakeZone(t, listings)
	loadConfig = func() (*config.AppConfig, error) {
		cfg := testConfig()
		cfg.Policy.Threat = 60
		return cfg, nil
	}

	code, out, _ := execute("allow", "127.1.1.2")
	assert.Equal(t, 0, code)
	assert.Equal(t, "127.1.1.2\tallow\n", out)
}

func TestRun_ConfigError(t *testing.T) {
	orig := loadConfig
	defer func() { loadConfig = orig }()
	loadConfig = func() (*config.AppConfig, error) { return nil, errors.New("mocked error") }

	code, out, errOut := execute("check", "127.0.0.1")
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "configuration error: mocked error")
}

func TestRun_ResolverError(t *testing.T) {
	fakeZone(t, listings)
	newResolver = func(transport.TransportType, transport.Options) (lookup.NameResolver, error) {
		return nil, errors.New("no route")
	}

	code, _, errOut := execute("allow", "127.0.0.1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "failed to create resolver: no route")
}

func TestRun_Version(t *testing.T) {
	code, out, _ := execute("--version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, version)
}

func TestBuildApplication(t *testing.T) {
	cfg := testConfig()
	app, err := buildApplication(cfg)
	require.NoError(t, err)
	assert.Same(t, cfg, app.config)
	assert.Equal(t, 20, app.evaluator.Thresholds().Threat)
	assert.Equal(t, "abcdefghijkl.4.3.2.1.dnsbl.httpbl.org", app.checker.QueryName("1.2.3.4"))

	cfg = testConfig()
	cfg.Resolver.Transport = "udp"
	cfg.Resolver.Servers = nil
	_, err = buildApplication(cfg)
	assert.ErrorContains(t, err, "no upstream DNS servers provided")

	cfg = testConfig()
	cfg.Service.Key = ""
	_, err = buildApplication(cfg)
	assert.ErrorContains(t, err, "access key is required")
}

func TestApplication_StartupFields(t *testing.T) {
	cfg := testConfig()
	cfg.Resolver.Transport = "tcp-tls"
	cfg.Resolver.Servers = []string{"9.9.9.9:853"}
	app, err := buildApplication(cfg)
	require.NoError(t, err)

	fields := app.startupFields()
	assert.Equal(t, version, fields["version"])
	assert.Equal(t, "tcp-tls", fields["transport"])
	assert.Equal(t, []string{"9.9.9.9:853"}, fields["servers"])
	assert.Equal(t, "2s", fields["timeout"])
	assert.Equal(t, 20, fields["threat"])
	for _, v := range fields {
		assert.NotEqual(t, testKey, v, "access key must not be logged")
	}
}

func TestForEach_PreservesOrder(t *testing.T) {
	delays := map[string]time.Duration{"a": 30 * time.Millisecond, "b": 0, "c": 10 * time.Millisecond}
	got := forEach(context.Background(), []string{"a", "b", "c"}, func(_ context.Context, s string) string {
		time.Sleep(delays[s])
		return s + "!"
	})
	assert.Equal(t, []string{"a!", "b!", "c!"}, got)
}

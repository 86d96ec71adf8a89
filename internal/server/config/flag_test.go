package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	base := func() *Config {
		c := &Config{}
		c.LoadDefaults()
		c.PullSafetyWindow = 500 * time.Millisecond
		return c
	}

	tests := []struct {
		expected    func() *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-h", "127.0.0.1:8081", "-m", "memory", "-d", "db", "-s", "secret",
			"-l", "7", "-t", "3", "-w", "14", "-i", "5", "-y", "2",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint", "-v", "debug",
		},
			expected: func() *Config {
				c := base()
				c.EndpointAddrGRPC = "127.0.0.1:9090"
				c.EndpointAddrHTTP = "127.0.0.1:8081"
				c.Storage = StorageMemory
				c.DatabaseDSN = "db"
				c.SecretKey = "secret"
				c.LedgerRetention = 7 * day
				c.TombstoneRetention = 3 * day
				c.RecentWindow = 14 * day
				c.PruneInterval = 5 * time.Minute
				c.PullSafetyWindow = 2 * time.Second
				c.S3RootUser = "user"
				c.S3RootPassword = "password"
				c.S3Bucket = "bucket"
				c.S3Region = "us-west-1"
				c.S3BaseEndpoint = "http://endpoint"
				c.LogLevel = "debug"
				return c
			}},
		{name: "unset durations keep sub-unit values", args: []string{"cmd", "-s", "x", "-c", "ignored.json"},
			expected: func() *Config {
				c := base()
				c.SecretKey = "x"
				return c
			}},
		{name: "bad integer panics", args: []string{"cmd", "-l", "many"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := base()

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected()))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}

package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-h string   HTTP bind address (e.g., ":8080")
//	-m string   storage backend, postgres or memory
//	-d string   PostgreSQL DSN
//	-s string   secret key for JWT verification and cursor signing
//	-l int      ledger retention, days
//	-t int      tombstone retention, days
//	-w int      recent scope window, days
//	-i int      prune interval, minutes
//	-y int      pull safety window, seconds
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name (empty disables ledger archiving)
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-v string   log level: debug, info, warn, error
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are integers in the unit shown above and only override
//     the current value when present.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-h", "-m", "-d", "-s", "-l", "-t", "-w", "-i", "-y", "-u", "-p", "-b", "-g", "-e", "-v",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "h", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.Storage, "m", config.Storage, "storage backend (postgres|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	ledgerRetention := fs.Int("l", int(config.LedgerRetention/day), "ledger retention (in days)")
	tombstoneRetention := fs.Int("t", int(config.TombstoneRetention/day), "tombstone retention (in days)")
	recentWindow := fs.Int("w", int(config.RecentWindow/day), "recent scope window (in days)")
	pruneInterval := fs.Int("i", int(config.PruneInterval.Minutes()), "prune interval (in minutes)")
	safetyWindow := fs.Int("y", int(config.PullSafetyWindow.Seconds()), "pull safety window (in seconds)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 archive bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Only flags given explicitly replace durations, so sub-unit values from
	// defaults or JSON survive the integer round trip.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "l":
			config.LedgerRetention = time.Duration(*ledgerRetention) * day
		case "t":
			config.TombstoneRetention = time.Duration(*tombstoneRetention) * day
		case "w":
			config.RecentWindow = time.Duration(*recentWindow) * day
		case "i":
			config.PruneInterval = time.Duration(*pruneInterval) * time.Minute
		case "y":
			config.PullSafetyWindow = time.Duration(*safetyWindow) * time.Second
		}
	})
}

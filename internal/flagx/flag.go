// Package flagx holds command-line helpers that let several components parse
// their own flags from os.Args without tripping over each other.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigEnv names the environment variable consulted when no -c/-config flag is given.
const ConfigEnv = "CONFIG"

// FilterArgs returns the subset of args that belongs to allowedFlags, keeping
// values that follow a flag as a separate token.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      --config=conf.json
//
// A double-dash spelling of an allowed single-dash flag ("--a" for "-a") is
// accepted as well, mirroring the flag package.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}
	isAllowed := func(name string) bool {
		if _, ok := allowed[name]; ok {
			return true
		}
		if strings.HasPrefix(name, "--") {
			_, ok := allowed[name[1:]]
			return ok
		}
		return false
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if isAllowed(name) {
				filtered = append(filtered, arg)
			}
			continue
		}

		if !isAllowed(arg) {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// JsonConfigFlags returns the JSON config path given with -c or -config,
// falling back to the CONFIG environment variable. Empty means "no file".
func JsonConfigFlags() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	if config == "" {
		config = os.Getenv(ConfigEnv)
	}

	return config
}

// Positional returns the arguments that are neither flags nor flag values.
// valueFlags lists the flags that consume the following token; the -c and
// -config flags are always treated that way.
func Positional(args []string, valueFlags []string) []string {
	takesValue := map[string]struct{}{"-c": {}, "-config": {}}
	for _, f := range valueFlags {
		takesValue[f] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i+1:]...)
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			out = append(out, arg)
			continue
		}
		if strings.Contains(arg, "=") {
			continue
		}
		name := arg
		if strings.HasPrefix(name, "--") {
			name = name[1:]
		}
		if _, ok := takesValue[name]; ok {
			i++
		}
	}
	return out
}

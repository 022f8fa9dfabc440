// Package cmdutil holds the small pieces shared by the chat CLIs: env-var
// defaults for flags, overwrite guards for generated files, and JSON result
// output.
//
// Every flag in the chat binaries follows the same pattern: the env var
// supplies the default, the flag overrides it. The Env* helpers implement
// the env half of that.
package cmdutil

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func envValue(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// EnvString returns the trimmed value of key, or fallback when unset or
// blank.
func EnvString(key string, fallback string) string {
	if v, ok := envValue(key); ok {
		return v
	}
	return fallback
}

// EnvBool parses key as a boolean, or returns fallback when unset or blank.
func EnvBool(key string, fallback bool) (bool, error) {
	v, ok := envValue(key)
	if !ok {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

// EnvInt parses key as an integer, or returns fallback when unset or blank.
func EnvInt(key string, fallback int) (int, error) {
	v, ok := envValue(key)
	if !ok {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// EnvDuration parses key as a time.Duration, or returns fallback when unset
// or blank.
func EnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := envValue(key)
	if !ok {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

// SplitCSVEnv splits key's value on commas, trimming each part and dropping
// empties. An unset key yields nil.
func SplitCSVEnv(key string) []string {
	v, ok := envValue(key)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

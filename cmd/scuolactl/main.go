// Command scuolactl runs a single action against a scuola server.
//
//	scuolactl [-url BASE_URL] [-write] ACTION [key=value ...]
//
// Values that parse as JSON are sent as JSON, anything else as a string.
// Read actions go through the response cache (Redis when -redis or REDIS_ADDR
// is set, memory otherwise); -write runs the action as a mutation.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"scuola/internal/cache"
	"scuola/internal/cli"
	"scuola/internal/client"
	"scuola/internal/log"
)

func main() {
	cli.LoadEnvFile()

	url := flag.String("url", envOr("SCUOLA_URL", "http://localhost:8081"), "server base URL")
	redisAddr := flag.String("redis", os.Getenv("REDIS_ADDR"), "Redis address for the response cache")
	write := flag.Bool("write", false, "run the action as a mutation")
	ttl := flag.Duration("ttl", 30*time.Minute, "cache entry lifetime")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	verbose := flag.Bool("v", false, "log cache and transport activity")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: scuolactl [flags] ACTION [key=value ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	action := flag.Arg(0)
	payload, err := parsePayload(flag.Args()[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := log.Discard()
	if *verbose {
		logger = cli.SetupLogger("debug")
	}

	var store cache.Store = cache.NewMemory(100, *ttl)
	if *redisAddr != "" {
		rdb := cache.NewRedisClient(*redisAddr)
		defer rdb.Close()
		store = cache.NewRedis(rdb, "", *ttl)
	}

	c := client.New(
		client.NewHTTPTransport(*url, &http.Client{Timeout: *timeout}),
		client.Options{Cache: store, Logger: logger, RefreshTimeout: *timeout},
	)
	defer c.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	call := c.Query
	if *write {
		call = c.Mutate
	}
	var data json.RawMessage
	msg, err := call(ctx, action, payload, &data)
	if err != nil {
		fmt.Fprintln(os.Stderr, client.Message(err))
		os.Exit(1)
	}

	if len(data) > 0 {
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			out = data
		}
		fmt.Println(string(out))
	}
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
}

// parsePayload turns key=value arguments into a request object.
func parsePayload(args []string) (map[string]any, error) {
	payload := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value", arg)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			payload[k] = decoded
		} else {
			payload[k] = v
		}
	}
	return payload, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

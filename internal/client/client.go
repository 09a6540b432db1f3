// Package client is the typed façade over the action endpoint. Read results are
// cached for a fixed TTL and served stale-while-revalidate; any successful write
// clears the whole cache.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"scuola/internal/cache"
	"scuola/internal/log"
	"scuola/internal/metrics"
)

const (
	defaultRefreshTimeout = 30 * time.Second
	unknownErrorMessage   = "Unknown error"
)

type mode int

const (
	modeCached mode = iota
	modeUncached
	modeWrite
)

// ActionError is a failed envelope. Message is what the user should see.
type ActionError struct {
	Action  string
	Message string
}

func (e *ActionError) Error() string { return e.Message }

// Envelope is the decoded server reply.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message"`
}

// Options configures New.
type Options struct {
	// Cache may be nil to disable caching.
	Cache          cache.Store
	Logger         *log.Logger
	Metrics        *metrics.Metrics
	RefreshTimeout time.Duration
}

// Client exposes one method per action.
type Client struct {
	transport      Transport
	cache          cache.Store
	logger         *log.Logger
	metrics        *metrics.Metrics
	refreshTimeout time.Duration

	group      singleflight.Group
	refreshing sync.WaitGroup

	// clears counts cache clears. A fetch that started before a clear must not
	// store its response after it.
	clearMu sync.RWMutex
	clears  uint64
}

func New(t Transport, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	rt := opts.RefreshTimeout
	if rt <= 0 {
		rt = defaultRefreshTimeout
	}
	return &Client{
		transport:      t,
		cache:          opts.Cache,
		logger:         logger.WithComponent(log.ComponentClient),
		metrics:        opts.Metrics,
		refreshTimeout: rt,
	}
}

// Wait blocks until in-flight background refreshes finish.
func (c *Client) Wait() { c.refreshing.Wait() }

// Query runs a read action, using the cache when configured.
func (c *Client) Query(ctx context.Context, action string, req, out any) (string, error) {
	return c.call(ctx, action, req, out, modeCached)
}

// Mutate runs a write action and clears the cache on success.
func (c *Client) Mutate(ctx context.Context, action string, req, out any) (string, error) {
	return c.call(ctx, action, req, out, modeWrite)
}

// InvalidateAll drops every cached response.
func (c *Client) InvalidateAll(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.clearCache(ctx)
}

func (c *Client) clearCache(ctx context.Context) error {
	c.clearMu.Lock()
	defer c.clearMu.Unlock()
	c.clears++
	return c.cache.Clear(ctx)
}

func (c *Client) clearCount() uint64 {
	c.clearMu.RLock()
	defer c.clearMu.RUnlock()
	return c.clears
}

func (c *Client) call(ctx context.Context, action string, req, out any, m mode) (string, error) {
	body, err := encodeRequest(action, req)
	if err != nil {
		return "", err
	}

	var raw []byte
	if m == modeCached && c.cache != nil {
		raw, err = c.cachedFetch(ctx, body)
	} else {
		raw, err = c.transport.RoundTrip(ctx, body)
	}
	if err != nil {
		return "", err
	}

	env, err := decodeEnvelope(action, raw)
	if err != nil {
		return "", err
	}
	if m == modeWrite && c.cache != nil {
		if err := c.clearCache(ctx); err != nil {
			c.logger.WarnContext(ctx, "Cache clear after write failed", log.FieldAction, action, log.FieldError, err)
		}
	}
	if out != nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env.Message, fmt.Errorf("decode %s data: %w", action, err)
		}
	}
	return env.Message, nil
}

// cachedFetch serves a live entry immediately and refreshes it in the background.
// Misses fetch synchronously. Concurrent fetches of one key are collapsed.
func (c *Client) cachedFetch(ctx context.Context, body []byte) ([]byte, error) {
	key := cacheKey(body)

	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "Cache read failed", log.FieldError, err)
	}
	if ok {
		c.metrics.CacheLookup("hit")
		c.refresh(ctx, key, body)
		return cached, nil
	}

	c.metrics.CacheLookup("miss")
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetchAndStore(ctx, key, body)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) refresh(ctx context.Context, key string, body []byte) {
	c.refreshing.Add(1)
	go func() {
		defer c.refreshing.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		_, err, shared := c.group.Do(key, func() (any, error) {
			return c.fetchAndStore(rctx, key, body)
		})
		if err != nil && !shared {
			c.logger.DebugContext(rctx, "Background refresh failed", log.FieldError, err)
		}
	}()
}

// fetchAndStore caches only successful envelopes, and only when no clear
// happened while the request was out.
func (c *Client) fetchAndStore(ctx context.Context, key string, body []byte) ([]byte, error) {
	started := c.clearCount()
	raw, err := c.transport.RoundTrip(ctx, body)
	if err != nil {
		return nil, err
	}
	var head struct {
		Success bool `json:"success"`
	}
	if json.Unmarshal(raw, &head) != nil || !head.Success {
		return raw, nil
	}

	c.clearMu.RLock()
	defer c.clearMu.RUnlock()
	if c.clears != started {
		c.logger.DebugContext(ctx, "Dropping response fetched before a cache clear")
		return raw, nil
	}
	if err := c.cache.Set(ctx, key, raw); err != nil {
		c.logger.WarnContext(ctx, "Cache write failed", log.FieldError, err)
	}
	return raw, nil
}

// encodeRequest flattens req into {"action": ..., ...fields}. Map keys marshal
// sorted, so equal requests produce equal bytes.
func encodeRequest(action string, req any) ([]byte, error) {
	fields := map[string]any{}
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", action, err)
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("encode %s request: payload must be an object: %w", action, err)
		}
		if fields == nil {
			fields = map[string]any{}
		}
	}
	fields["action"] = action
	return json.Marshal(fields)
}

func cacheKey(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func decodeEnvelope(action string, raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed response: %v", ErrNetwork, err)
	}
	if env.Message == "" {
		if env.Success {
			env.Message = "OK"
		} else {
			env.Message = unknownErrorMessage
		}
	}
	if !env.Success {
		return env, &ActionError{Action: action, Message: env.Message}
	}
	return env, nil
}

// Message returns the text to show for err: the server message for action
// failures and a generic connection hint otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Message
	}
	if errors.Is(err, ErrNetwork) {
		return "Could not reach the server, please check your connection"
	}
	return err.Error()
}

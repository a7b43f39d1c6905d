// Package apipool is the bounded pool of persistent, authenticated TLS
// connections to the API server, and the binary-RPC framing layer built on
// top of it. Grounded on the teacher's pkg/client connection-lifecycle
// conventions (per-call context.WithTimeout, explicit dial/close), but
// generalized from gRPC+mTLS to the length-framed binary protocol
// original_source's pnetlibs.h declares (psync_apipool_get/release/
// release_bad, psync_do_api_run_command).
package apipool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimbusfs/synccore/pkg/log"
	"github.com/nimbusfs/synccore/pkg/metrics"
	"github.com/nimbusfs/synccore/pkg/status"
	"github.com/nimbusfs/synccore/pkg/tlssocket"
)

const (
	defaultPort       = "443"
	defaultMaxIdle    = 8
	defaultConnectTTL = 10 * time.Second
)

// Conn is one pooled connection: the TLS socket plus the cache key
// (server host) it belongs to, matching psync_http_socket's cachekey
// field from original_source.
type Conn struct {
	sock *tlssocket.Conn
	host string
}

// Pool is a bounded cache of idle connections to one configured API
// server host, set via SetServer.
type Pool struct {
	mu      sync.Mutex
	host    string
	idle    []*Conn // LIFO: last released is first returned, per property #7
	maxIdle int
}

// NewPool creates a pool with no configured server; SetServer must be
// called before Get.
func NewPool() *Pool {
	return &Pool{maxIdle: defaultMaxIdle}
}

// SetServer configures the API host new connections dial to. Existing
// idle connections to a different host are dropped.
func (p *Pool) SetServer(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.host == host {
		return
	}
	for _, c := range p.idle {
		_ = c.sock.Close()
	}
	p.idle = nil
	p.host = host
}

// GetFromCache returns an idle connection without dialing, or nil if none
// is available.
func (p *Pool) GetFromCache() *Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.idle)
	if n == 0 {
		return nil
	}
	c := p.idle[n-1]
	p.idle = p.idle[:n-1]
	return c
}

// Get returns a ready connection, reusing an idle one if available or
// dialing a new one otherwise.
func (p *Pool) Get(ctx context.Context) (*Conn, error) {
	if c := p.GetFromCache(); c != nil {
		return c, nil
	}
	return p.dial(ctx)
}

func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	host := p.host
	p.mu.Unlock()
	if host == "" {
		return nil, fmt.Errorf("apipool: no server configured, call SetServer first")
	}

	dialCtx, cancel := context.WithTimeout(ctx, defaultConnectTTL)
	defer cancel()

	addr := host
	if !hasPort(addr) {
		addr = host + ":" + defaultPort
	}
	sock, err := tlssocket.Dial(dialCtx, "tcp", addr, host)
	if err != nil {
		status.SetConnected(false)
		metrics.PoolDialsTotal.WithLabelValues("failure").Inc()
		metrics.UpdateComponent("apipool", false, err.Error())
		return nil, fmt.Errorf("apipool: dial %s: %w", host, err)
	}
	status.SetConnected(true)
	metrics.PoolDialsTotal.WithLabelValues("success").Inc()
	metrics.UpdateComponent("apipool", true, "")
	log.WithComponent("apipool").Info().Str("host", host).Msg("connection opened")
	return &Conn{sock: sock, host: host}, nil
}

func hasPort(addr string) bool {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ']' {
			return false
		}
		if addr[i] == ':' {
			return true
		}
	}
	return false
}

// Prepare opportunistically dials up to low-water connections so a
// subsequent Get is warm.
func (p *Pool) Prepare(ctx context.Context, lowWater int) error {
	p.mu.Lock()
	have := len(p.idle)
	p.mu.Unlock()
	for have < lowWater {
		c, err := p.dial(ctx)
		if err != nil {
			return err
		}
		p.Release(c)
		have++
	}
	return nil
}

// Release returns a still-healthy connection to the idle cache.
func (p *Pool) Release(c *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.host != p.host {
		_ = c.sock.Close()
		return
	}
	if len(p.idle) >= p.maxIdle {
		oldest := p.idle[0]
		p.idle = p.idle[1:]
		_ = oldest.sock.Close()
	}
	p.idle = append(p.idle, c)
}

// ReleaseBad closes a connection that failed mid-protocol instead of
// returning it to the cache.
func (p *Pool) ReleaseBad(c *Conn) {
	_ = c.sock.Close()
}

// IdleCount reports how many connections are currently idle in the cache,
// for metrics collection.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// RunCommand is the get -> send -> read -> release convenience wrapper:
// acquire a connection, write a framed RPC, read the framed response, and
// release the connection (or close it on I/O error). Every call is timed
// into metrics.APIRequestDuration and counted into metrics.APIRequestsTotal,
// labeled by the response's result category once one is known.
func (p *Pool) RunCommand(ctx context.Context, command string, params ...Param) (*Node, error) {
	timer := metrics.NewTimer()
	c, err := p.Get(ctx)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(command, "dial_error").Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, command)
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.sock.SetDeadline(deadline)
	}

	if err := WriteCommand(c.sock, command, params); err != nil {
		p.ReleaseBad(c)
		metrics.APIRequestsTotal.WithLabelValues(command, "io_error").Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, command)
		return nil, fmt.Errorf("apipool: write command %q: %w", command, err)
	}
	resp, err := ReadResponse(c.sock)
	if err != nil {
		p.ReleaseBad(c)
		metrics.APIRequestsTotal.WithLabelValues(command, "io_error").Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, command)
		return nil, fmt.Errorf("apipool: read response for %q: %w", command, err)
	}
	_ = c.sock.SetDeadline(time.Time{})
	p.Release(c)

	metrics.APIRequestsTotal.WithLabelValues(command, HandleAPIResult(resp).String()).Inc()
	timer.ObserveDurationVec(metrics.APIRequestDuration, command)
	return resp, nil
}

// Package tlssocket wraps a TLS connection the way the original client's
// psync_ssl_connect/psync_ssl_connect_finish pair did for its non-blocking
// OpenSSL/mbedTLS backends, adapted to Go's synchronous crypto/tls: since
// crypto/tls.Conn.Handshake does not expose per-step want-read/want-write
// direction, the retry signal is collapsed into a single ErrRetry sentinel
// and callers drive progress through context deadlines instead of polling
// a socket readiness bit.
package tlssocket

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"
)

// ErrRetry replaces PSYNC_SSL_ERR_WANT_READ / PSYNC_SSL_ERR_WANT_WRITE: the
// handshake made no terminal progress and should be retried once the
// caller's context still has time left.
var ErrRetry = errors.New("tlssocket: handshake would block, retry")

// ErrNeedFinish mirrors PSYNC_SSL_NEED_FINISH: the connection was accepted
// for a non-blocking dial and the caller must call HandshakeStep to drive
// it to completion.
var ErrNeedFinish = errors.New("tlssocket: handshake not finished")

// InsecureSkipVerify disables certificate verification in Dial. It exists
// solely so tests can exercise Dial against a
// loopback listener with a self-signed certificate; production callers
// must never set it.
var InsecureSkipVerify = false

// Conn is an established TLS connection plus the raw socket underneath it,
// mirroring the original client's void *sslconn opaque handle paired with
// its psync_socket_t file descriptor.
type Conn struct {
	raw  net.Conn
	tls  *tls.Conn
	buf  *bufio.Reader
	host string
}

// Dial opens a TCP connection to addr and performs a TLS handshake against
// hostname for SNI and certificate verification, aborting if ctx is
// cancelled or its deadline passes before the handshake completes.
func Dial(ctx context.Context, network, addr, hostname string) (*Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		ServerName:         hostname,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: InsecureSkipVerify,
	}
	tlsConn := tls.Client(raw, cfg)

	if deadline, ok := ctx.Deadline(); ok {
		_ = tlsConn.SetDeadline(deadline)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	_ = tlsConn.SetDeadline(time.Time{})

	return &Conn{raw: raw, tls: tlsConn, buf: bufio.NewReader(tlsConn), host: hostname}, nil
}

// HandshakeStep drives one non-blocking handshake attempt against a
// connection already wrapped in tls.Client, for callers that built their
// own net.Conn (e.g. out of a pooled socket) instead of using Dial. It
// returns ErrRetry if the handshake needs another call and nil once
// complete.
func HandshakeStep(tlsConn *tls.Conn) error {
	err := tlsConn.Handshake()
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrRetry
	}
	return err
}

// Wrap builds a Conn from an already-established raw connection and TLS
// session, for callers (tests, or a pool warming connections with a
// non-default tls.Config) that performed the dial and handshake
// themselves instead of going through Dial.
func Wrap(raw net.Conn, tlsConn *tls.Conn, hostname string) *Conn {
	return &Conn{raw: raw, tls: tlsConn, buf: bufio.NewReader(tlsConn), host: hostname}
}

// Host returns the SNI hostname this connection was dialed for.
func (c *Conn) Host() string { return c.host }

// Read implements io.Reader over the TLS session.
func (c *Conn) Read(buf []byte) (int, error) { return c.buf.Read(buf) }

// Write implements io.Writer over the TLS session.
func (c *Conn) Write(buf []byte) (int, error) { return c.tls.Write(buf) }

// PendingData reports how many decrypted bytes are already buffered and
// can be read without another network round trip, matching
// psync_ssl_pendingdata's use in deciding whether to poll the socket.
func (c *Conn) PendingData() int { return c.buf.Buffered() }

// Shutdown closes the TLS session without closing the underlying socket,
// matching psync_ssl_shutdown.
func (c *Conn) Shutdown() error { return c.tls.CloseWrite() }

// Close closes both the TLS session and the underlying socket.
func (c *Conn) Close() error {
	tlsErr := c.tls.Close()
	rawErr := c.raw.Close()
	if tlsErr != nil {
		return tlsErr
	}
	return rawErr
}

// SetDeadline sets both read and write deadlines on the underlying socket.
func (c *Conn) SetDeadline(t time.Time) error { return c.raw.SetDeadline(t) }

package apipool

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"io"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/nimbusfs/synccore/pkg/metrics"
	"github.com/nimbusfs/synccore/pkg/tlssocket"
)

func testServerConfig(t *testing.T) *tls.Config {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: priv}}}
}

// startUserinfoServer accepts connections and replies to a "userinfo"
// command with a synthetic result=0 response, as many times as asked on
// the same connection (serial request/response, no pipelining).
func startUserinfoServer(t *testing.T) net.Addr {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", testServerConfig(t))
	if err != nil {
		t.Fatalf("tls.Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn)
		}
	}()
	return ln.Addr()
}

func serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		var lenbuf [4]byte
		if _, err := io.ReadFull(conn, lenbuf[:]); err != nil {
			return
		}
		total := binary.LittleEndian.Uint32(lenbuf[:])
		body := make([]byte, total)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}
		resp := &Node{Type: NodeHash, Hash: map[string]*Node{
			"result": {Type: NodeNum, Num: 0},
			"email":  {Type: NodeString, Str: "user@example.com"},
		}}
		if err := WriteFramedResponse(conn, resp); err != nil {
			return
		}
	}
}

func TestRunCommandAndPoolReuse(t *testing.T) {
	addr := startUserinfoServer(t)

	p := NewPool()
	p.SetServer(addr.String())

	// Override dial for the test: since Dial uses real TLS verification, we
	// exercise RunCommand through a manually obtained, pool-released
	// connection path instead of relying on certificate trust.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := dialInsecureConn(ctx, addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	p.Release(conn)

	resp, err := p.RunCommand(ctx, "userinfo")
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if resp.Get("email").StrOr("") != "user@example.com" {
		t.Fatalf("email = %v, want user@example.com", resp.Get("email"))
	}

	// Property #7: after RunCommand releases the connection, the next
	// GetFromCache returns that same connection (LIFO identity).
	if got := p.GetFromCache(); got != conn {
		t.Fatalf("GetFromCache() = %p after RunCommand released the connection, want %p", got, conn)
	}
}

func dialInsecureConn(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	tlsConn := tls.Client(raw, &tls.Config{InsecureSkipVerify: true})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Conn{sock: tlssocket.Wrap(raw, tlsConn, addr), host: addr}, nil
}

func TestReleaseBadDoesNotCache(t *testing.T) {
	addr := startUserinfoServer(t)
	p := NewPool()
	p.SetServer(addr.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := dialInsecureConn(ctx, addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	p.ReleaseBad(conn)

	if p.GetFromCache() != nil {
		t.Fatalf("GetFromCache() returned a connection after ReleaseBad")
	}
}

func TestSetServerDropsIdleOnHostChange(t *testing.T) {
	addr := startUserinfoServer(t)
	p := NewPool()
	p.SetServer(addr.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := dialInsecureConn(ctx, addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	p.Release(conn)

	p.SetServer("some.other.host:443")
	if p.GetFromCache() != nil {
		t.Fatalf("GetFromCache() returned a stale-host connection after SetServer")
	}
}

// TestDialFailureReportsUnhealthyToMetrics exercises the real Pool.dial
// path (not the dialInsecureConn test bypass) against a port nothing is
// listening on, and checks that the failure is visible through
// metrics.GetHealth() — the "apipool" component's health is driven by
// the pool's own dial outcome, not asserted by a caller.
func TestDialFailureReportsUnhealthyToMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close() // nothing listening on addr now

	p := NewPool()
	p.SetServer(addr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := p.Get(ctx); err == nil {
		t.Fatalf("Get() against a closed port succeeded unexpectedly")
	}

	health := metrics.GetHealth()
	comp, ok := health.Components["apipool"]
	if !ok {
		t.Fatalf("apipool component not registered after dial failure")
	}
	if comp == "healthy" {
		t.Fatalf("apipool reported healthy after a dial failure")
	}
}

// TestDialSuccessReportsHealthyToMetrics exercises a real Pool.dial against
// a live TLS listener (certificate verification relaxed via
// tlssocket.InsecureSkipVerify, the same escape hatch tlssocket_test.go
// uses) and checks that metrics.GetHealth() reflects the success.
func TestDialSuccessReportsHealthyToMetrics(t *testing.T) {
	addr := startUserinfoServer(t)

	prev := tlssocket.InsecureSkipVerify
	tlssocket.InsecureSkipVerify = true
	defer func() { tlssocket.InsecureSkipVerify = prev }()

	p := NewPool()
	p.SetServer(addr.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	p.Release(conn)

	health := metrics.GetHealth()
	if health.Components["apipool"] != "healthy" {
		t.Fatalf("apipool component = %q, want healthy", health.Components["apipool"])
	}
}

package resolver

import (
	"bytes"
	"context"
	"io"
	"net"
)

var (
	icyStatus  = []byte("ICY ")
	httpStatus = []byte("HTTP/1.0 ")
)

// icyConn rewrites the "ICY 200 OK" status line of Shoutcast v1 servers to
// HTTP/1.0 so their headers are parsed like any other response. Only the
// first bytes read from the connection are inspected.
type icyConn struct {
	net.Conn

	checked bool
	pending []byte
}

func (c *icyConn) Read(p []byte) (int, error) {
	if !c.checked {
		c.checked = true

		head := make([]byte, len(icyStatus))
		n, err := io.ReadFull(c.Conn, head)
		if n == 0 {
			return 0, err
		}

		if bytes.Equal(head[:n], icyStatus) {
			c.pending = append([]byte(nil), httpStatus...)
		} else {
			c.pending = head[:n]
		}
	}

	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}

	return c.Conn.Read(p)
}

func dialICY(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &icyConn{Conn: conn}, nil
	}
}

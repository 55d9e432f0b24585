// Package transport moves JSON envelopes between ring nodes.
//
// The wire contract is one UTF-8 JSON document per TCP connection:
// the sender connects, writes the document, half-closes its write side,
// and closes. No response travels on the same socket; replies are a
// fresh connection initiated by the receiver toward the origin's reply
// port. Framing by half-close means envelopes have no length limit and
// the receiver simply reads to EOF.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DialTimeout bounds connect+send toward a peer. A send that misses the
// deadline is logged and dropped; there is no retry at this layer.
const DialTimeout = 10 * time.Second

// readTimeout bounds how long an accepted connection may dribble bytes
// before the frame is abandoned.
const readTimeout = 10 * time.Second

// Send opens a TCP connection to addr, writes env as one JSON document,
// half-closes the write side, and closes. Failures are logged here and
// returned so client-side operations can surface them; ring-side
// forwarding ignores the return per the fire-and-forget contract.
func Send(addr string, env any) error {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		glog.Warningf("transport: dial %s: %v", addr, err)
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(DialTimeout))
	if err := json.NewEncoder(conn).Encode(env); err != nil {
		glog.Warningf("transport: send to %s: %v", addr, err)
		return fmt.Errorf("send to %s: %w", addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite()
	}
	return nil
}

// Listen binds a TCP listener on the preferred port. When the port is
// occupied and fallback is allowed, the OS picks a free one instead;
// the bootstrap passes fallback=false because its port is fixed by
// convention. Returns the listener and the port actually bound.
func Listen(preferred int, fallback bool) (net.Listener, int, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", preferred))
	if err != nil {
		if !fallback || preferred == 0 {
			return nil, 0, fmt.Errorf("bind port %d: %w", preferred, err)
		}
		glog.Warningf("transport: port %d is taken, falling back to an OS-assigned one", preferred)
		ln, err = net.Listen("tcp", ":0")
		if err != nil {
			return nil, 0, fmt.Errorf("bind fallback port: %w", err)
		}
	}
	return ln, ln.Addr().(*net.TCPAddr).Port, nil
}

// Handler consumes one received frame. The payload is the raw bytes of
// the JSON document; decoding happens in the dispatcher so this package
// stays ignorant of message schemas.
type Handler func(payload []byte)

// Server accepts connections and hands each complete frame to the
// handler. Handlers run concurrently, one goroutine per connection.
type Server struct {
	ln      net.Listener
	handler Handler

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewServer wraps an existing listener. The caller owns port selection
// (see Listen) so the bound port is known before serving starts.
func NewServer(ln net.Listener, h Handler) *Server {
	return &Server{ln: ln, handler: h}
}

// Serve runs the accept loop until Close. Each accepted connection is
// read to EOF and dispatched on its own goroutine.
func (s *Server) Serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.isClosed() {
				return
			}
			glog.Errorf("transport: accept: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	payload, err := io.ReadAll(conn)
	if err != nil {
		glog.Errorf("transport: read frame from %s: %v", conn.RemoteAddr(), err)
		return
	}
	if len(payload) == 0 {
		return
	}
	s.handler(payload)
}

// Close stops accepting and waits for in-flight handlers to drain.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

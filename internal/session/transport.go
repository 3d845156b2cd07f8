package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/websocket"
)

// ErrTimeout reports that no message arrived within the receive window. The
// connection is still healthy; the caller decides whether a check-in is due.
var ErrTimeout = errors.New("receive timed out")

// ErrMalformed reports an inbound frame that is not a valid envelope. This is
// fatal for the connection.
var ErrMalformed = errors.New("malformed envelope")

// Transport is a duplex {type, data} message channel over one connection.
type Transport interface {
	// Receive waits up to timeout for the next inbound envelope. It returns
	// ErrTimeout when the window elapses, ErrMalformed on an undecodable
	// frame, and any other error when the peer is gone.
	Receive(ctx context.Context, timeout time.Duration) (Envelope, error)

	// Send writes one tagged envelope.
	Send(ctx context.Context, msgType string, data any) error

	// CloseNormal closes the connection cleanly.
	CloseNormal(reason string) error

	// CloseProtocol closes the connection signalling a protocol violation.
	CloseProtocol(reason string) error
}

type inboundFrame struct {
	data []byte
	err  error
}

// wsTransport adapts a coder/websocket connection to the Transport interface.
// A single reader goroutine owns conn.Read for the connection's whole life:
// coder/websocket closes the connection when a read context expires, so the
// per-call receive window must be a timer around a channel read, never a
// deadline on the read itself.
type wsTransport struct {
	conn   *websocket.Conn
	frames chan inboundFrame
}

// NewWebSocketTransport wraps an accepted websocket connection. ctx bounds the
// reader goroutine and must outlive the session.
func NewWebSocketTransport(ctx context.Context, conn *websocket.Conn) Transport {
	t := &wsTransport{
		conn:   conn,
		frames: make(chan inboundFrame),
	}
	go t.readLoop(ctx)
	return t
}

func (t *wsTransport) readLoop(ctx context.Context) {
	defer close(t.frames)
	for {
		_, data, err := t.conn.Read(ctx)
		if err != nil {
			select {
			case t.frames <- inboundFrame{err: err}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case t.frames <- inboundFrame{data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func (t *wsTransport) Receive(ctx context.Context, timeout time.Duration) (Envelope, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var frame inboundFrame
	select {
	case f, ok := <-t.frames:
		if !ok {
			return Envelope{}, errors.New("connection closed")
		}
		frame = f
	case <-timer.C:
		return Envelope{}, ErrTimeout
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}

	if frame.err != nil {
		return Envelope{}, fmt.Errorf("websocket read: %w", frame.err)
	}

	var env Envelope
	if err := json.Unmarshal(frame.data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

func (t *wsTransport) Send(ctx context.Context, msgType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode envelope data: %w", err)
	}
	payload, err := json.Marshal(Envelope{Type: msgType, Data: raw})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := t.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (t *wsTransport) CloseNormal(reason string) error {
	return t.conn.Close(websocket.StatusNormalClosure, reason)
}

func (t *wsTransport) CloseProtocol(reason string) error {
	return t.conn.Close(websocket.StatusPolicyViolation, reason)
}

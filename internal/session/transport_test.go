package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// dialTransport stands up a real websocket pair: the returned Transport wraps
// the server-accepted side, the returned conn is the client side.
func dialTransport(t *testing.T) (Transport, *websocket.Conn) {
	t.Helper()

	transports := make(chan Transport, 1)
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept websocket: %v", err)
			return
		}
		transports <- NewWebSocketTransport(r.Context(), conn)
		// Hold the handler open so the request context outlives the test.
		<-done
	}))
	t.Cleanup(func() {
		close(done)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	client, _, err := websocket.Dial(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { client.Close(websocket.StatusNormalClosure, "") })

	return <-transports, client
}

func TestWebSocketTransportSurvivesReceiveTimeout(t *testing.T) {
	transport, client := dialTransport(t)
	ctx := context.Background()

	// Idle window: the timeout must fire without killing the connection.
	if _, err := transport.Receive(ctx, 100*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout on idle window, got %v", err)
	}
	if _, err := transport.Receive(ctx, 100*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout on second idle window, got %v", err)
	}

	// An envelope sent after the timeouts must still be delivered.
	if err := client.Write(ctx, websocket.MessageText, []byte(`{"type":"state","data":{"machineId":"m1"}}`)); err != nil {
		t.Fatalf("client write: %v", err)
	}
	env, err := transport.Receive(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("expected envelope after idle windows, got %v", err)
	}
	if env.Type != TypeState {
		t.Errorf("expected state envelope, got type %q", env.Type)
	}

	// And the connection keeps idling cleanly afterwards.
	if _, err := transport.Receive(ctx, 100*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout after delivery, got %v", err)
	}
}

func TestWebSocketTransportMalformedFrame(t *testing.T) {
	transport, client := dialTransport(t)
	ctx := context.Background()

	if err := client.Write(ctx, websocket.MessageText, []byte(`not json`)); err != nil {
		t.Fatalf("client write: %v", err)
	}
	if _, err := transport.Receive(ctx, 2*time.Second); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	if err := client.Write(ctx, websocket.MessageText, []byte(`{"data":{}}`)); err != nil {
		t.Fatalf("client write: %v", err)
	}
	if _, err := transport.Receive(ctx, 2*time.Second); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing type, got %v", err)
	}
}

func TestWebSocketTransportPeerClose(t *testing.T) {
	transport, client := dialTransport(t)
	ctx := context.Background()

	if err := client.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("client close: %v", err)
	}

	_, err := transport.Receive(ctx, 2*time.Second)
	if err == nil || errors.Is(err, ErrTimeout) || errors.Is(err, ErrMalformed) {
		t.Fatalf("expected disconnect error, got %v", err)
	}
}

func TestWebSocketTransportSendRoundTrip(t *testing.T) {
	transport, client := dialTransport(t)
	ctx := context.Background()

	if err := transport.Send(ctx, TypeNotification, Notification{Title: "attent", Body: "hi"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, data, err := client.Read(readCtx)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	want := `{"type":"notification","data":{"title":"attent","body":"hi"}}`
	if string(data) != want {
		t.Errorf("unexpected frame %s", data)
	}
}

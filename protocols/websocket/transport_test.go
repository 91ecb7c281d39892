package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lisuiheng/pcmout/pkg/interfaces"
)

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echoServer(t *testing.T, headers chan<- http.Header) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if headers != nil {
			headers <- r.Header.Clone()
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func receive(t *testing.T, p *WSProtocol) interfaces.Message {
	t.Helper()
	select {
	case msg, ok := <-p.Receive():
		if !ok {
			t.Fatal("receive channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return interfaces.Message{}
}

func TestSendReceive(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := echoServer(t, headers)
	defer srv.Close()

	p, err := NewWebSocketProtocol(Config{URL: wsURL(srv), AccessToken: "secret", DeviceID: "dev-1", ClientID: "client-1"})
	if err != nil {
		t.Fatalf("NewWebSocketProtocol: %v", err)
	}
	defer p.Close()
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	h := <-headers
	if got := h.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q", got)
	}
	if h.Get("Device-Id") != "dev-1" || h.Get("Client-Id") != "client-1" || h.Get("Protocol-Version") != "1" {
		t.Errorf("unexpected headers %v", h)
	}

	if err := p.Send([]byte(`{"type":"ping"}`), interfaces.MsgText); err != nil {
		t.Fatalf("Send text: %v", err)
	}
	if msg := receive(t, p); msg.Type != interfaces.MsgText || string(msg.Payload) != `{"type":"ping"}` {
		t.Errorf("unexpected echo %+v", msg)
	}

	if err := p.Send([]byte{1, 2, 3}, interfaces.MsgBinary); err != nil {
		t.Fatalf("Send binary: %v", err)
	}
	if msg := receive(t, p); msg.Type != interfaces.MsgBinary || len(msg.Payload) != 3 {
		t.Errorf("unexpected echo %+v", msg)
	}
}

func TestReceiveClosesOnDisconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	p, _ := NewWebSocketProtocol(Config{URL: wsURL(srv)})
	defer p.Close()
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case _, ok := <-p.Receive():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after disconnect")
	}
}

func TestConnectErrors(t *testing.T) {
	if _, err := NewWebSocketProtocol(Config{}); !errors.Is(err, interfaces.ErrConnectionFailed) {
		t.Errorf("empty url: expected ErrConnectionFailed, got %v", err)
	}

	for _, url := range []string{"http://127.0.0.1/audio", "tcp://127.0.0.1:9000"} {
		if _, err := NewWebSocketProtocol(Config{URL: url}); !errors.Is(err, interfaces.ErrUnsupportedProtocol) {
			t.Errorf("%s: expected ErrUnsupportedProtocol, got %v", url, err)
		}
	}

	p, _ := NewWebSocketProtocol(Config{URL: "ws://127.0.0.1:1/none"})
	if err := p.Connect(context.Background()); !errors.Is(err, interfaces.ErrConnectionFailed) {
		t.Errorf("dial: expected ErrConnectionFailed, got %v", err)
	}
	if err := p.Send([]byte("x"), interfaces.MsgText); !errors.Is(err, interfaces.ErrConnectionFailed) {
		t.Errorf("send without conn: expected ErrConnectionFailed, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	srv := echoServer(t, nil)
	defer srv.Close()

	p, _ := NewWebSocketProtocol(Config{URL: wsURL(srv)})
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if p.ProtocolType() != "websocket" {
		t.Errorf("unexpected protocol type %q", p.ProtocolType())
	}
}

package framing

import (
	"net"
	"sync"
	"testing"
	"time"
)

func TestConnectionInfoSendAndReceiveFull(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	var mu sync.Mutex
	var received []byte
	done := make(chan struct{})

	server := NewConnectionInfo(RoleServer, serverConn, 64, Events{
		OnFull: func(ci *ConnectionInfo, payload []byte) {
			mu.Lock()
			received = append([]byte(nil), payload...)
			mu.Unlock()
			close(done)
		},
	})
	server.SetWholePacketDelivery(true)

	go server.Start()

	client := NewConnectionInfo(RoleClient, clientConn, 64, Events{})

	if err := client.Send([]byte("HELLOWORLD"), true, true); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for receivedFull")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(received) != "HELLOWORLD" {
		t.Fatalf("expected HELLOWORLD, got %q", received)
	}
}

func TestConnectionInfoDisconnectReportsOnce(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	var count int
	var mu sync.Mutex
	done := make(chan struct{})

	server := NewConnectionInfo(RoleServer, serverConn, 64, Events{
		OnDisconnected: func(ci *ConnectionInfo, err error) {
			mu.Lock()
			count++
			mu.Unlock()
			close(done)
		},
	})

	go server.Start()

	if err := server.Disconnect(); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if err := server.Disconnect(); err != nil {
		t.Fatalf("second disconnect should be idempotent, got: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnected event")
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected exactly one disconnected event, got %d", count)
	}
}

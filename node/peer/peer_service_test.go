package peer_test

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babencoin/babencoin/common"
	"github.com/babencoin/babencoin/config"
	"github.com/babencoin/babencoin/data"
	"github.com/babencoin/babencoin/node/peer"
)

func startListeningService(t *testing.T) (*peer.Service, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := config.PeerServiceConfig{ListenAddress: addr}
	events := make(chan peer.Event, 16)
	commands := make(chan peer.Command, 16)
	svc := peer.New(cfg, events, commands)
	go svc.Run()
	time.Sleep(50 * time.Millisecond) // let the listener bind
	return svc, addr
}

func TestServiceEmitsConnectedOnInboundDial(t *testing.T) {
	svc, addr := startListeningService(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case ev := <-svc.Events():
		assert.Equal(t, peer.EventConnected, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connected event")
	}
}

func TestServiceDeliversNewMessage(t *testing.T) {
	svc, addr := startListeningService(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	<-svc.Events() // connected

	req := data.NewRequestMessage(mustHash("request"))
	encoded, err := json.Marshal(req.Unverified())
	require.NoError(t, err)
	_, err = conn.Write(append(encoded, 0x00))
	require.NoError(t, err)

	select {
	case ev := <-svc.Events():
		require.Equal(t, peer.EventNewMessage, ev.Kind)
		assert.Equal(t, data.KindRequest, ev.Message.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message event")
	}
}

func TestServiceDisconnectsOnMalformedFrame(t *testing.T) {
	svc, addr := startListeningService(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	<-svc.Events() // connected
	_, err = conn.Write([]byte("not json at all\x00"))
	require.NoError(t, err)

	select {
	case ev := <-svc.Events():
		require.Equal(t, peer.EventDisconnected, ev.Kind)
		assert.Equal(t, "malformed json", ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for disconnect event")
	}
}

func TestServiceSendCommandWritesFrame(t *testing.T) {
	svc, addr := startListeningService(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	connected := <-svc.Events()

	msg := data.NewRequestMessage(mustHash("reply"))
	svc.Commands() <- peer.Command{SessionID: connected.SessionID, Kind: peer.CommandSendMessage, Message: msg}

	reader := bufio.NewReader(conn)
	frame, err := reader.ReadBytes(0x00)
	require.NoError(t, err)
	frame = frame[:len(frame)-1]

	var wire data.PeerMessage
	require.NoError(t, json.Unmarshal(frame, &wire))
	assert.Equal(t, data.KindRequest, wire.Kind)
}

func TestServiceDisconnectsOnOversizeFrame(t *testing.T) {
	svc, addr := startListeningService(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	<-svc.Events() // connected

	// Exactly peer.MaxFrameSize bytes including the terminating NUL is
	// oversize: 65535 filler bytes plus the NUL makes 65536.
	frame := make([]byte, peer.MaxFrameSize)
	for i := range frame[:len(frame)-1] {
		frame[i] = 'a'
	}
	_, err = conn.Write(frame)
	require.NoError(t, err)

	select {
	case ev := <-svc.Events():
		require.Equal(t, peer.EventDisconnected, ev.Kind)
		assert.Equal(t, "oversize frame", ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for disconnect event")
	}
}

func mustHash(seed string) (h common.Hash) {
	copy(h[:], seed)
	return h
}

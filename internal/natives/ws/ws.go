// Package ws is a Host FFI domain module (spec.md §6) wrapping
// github.com/gorilla/websocket behind four native callables:
// ws_dial/ws_send/ws_recv/ws_close.
//
// Grounded on internal/network/websocket.go's WebSocketConn (dial, a
// message-reader goroutine feeding a buffered channel, send/close under a
// mutex).
package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quill/internal/natives"
	"quill/internal/vm"
)

// conn is one dialed connection's host-side state. A dialed connection is
// represented to scripts as a tagged value (quill values carry no host
// pointer kind) wrapping the integer handle indexing into conns — the same
// indirection the teacher gets for free by boxing an unsafe.Pointer, done
// here with a table since this value model does not NaN-box.
type conn struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
	inbox  chan []byte
}

type table struct {
	mu   sync.Mutex
	next int64
	m    map[int64]*conn
}

var conns = &table{m: make(map[int64]*conn)}

func (t *table) put(c *conn) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	t.m[id] = c
	return id
}

func (t *table) get(id int64) (*conn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.m[id]
	return c, ok
}

func (t *table) drop(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, id)
}

const tag = "WSConn"

// Register adds ws_dial/ws_send/ws_recv/ws_close to reg.
func Register(reg *natives.Registry) {
	reg.Register("ws_dial", wsDial)
	reg.Register("ws_send", wsSend)
	reg.Register("ws_recv", wsRecv)
	reg.Register("ws_close", wsClose)
}

func handleOf(v vm.Value) (int64, error) {
	h, ok := v.AsTagged(tag)
	if !ok {
		return 0, fmt.Errorf("expects a %s value", tag)
	}
	if !h.IsInt() {
		return 0, fmt.Errorf("malformed %s handle", tag)
	}
	return h.Int64(), nil
}

// wsDial(url) -> tagged WSConn
func wsDial(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 || !args[0].IsStr() {
		return vm.Value{}, fmt.Errorf("ws_dial expects a str url")
	}
	url := args[0].Str()

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	wsConn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return vm.Value{}, fmt.Errorf("ws_dial: %w", err)
	}

	c := &conn{ws: wsConn, inbox: make(chan []byte, 100)}
	go c.readLoop()
	id := conns.put(c)

	handle := vm.Int(id)
	return vm.TaggedValue(tag, &handle, vmRef.Heap), nil
}

func (c *conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			close(c.inbox)
			return
		}
		c.inbox <- data
	}
}

// wsSend(handle, msg) -> null
func wsSend(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 2 || !args[1].IsStr() {
		return vm.Value{}, fmt.Errorf("ws_send expects (handle, str)")
	}
	id, err := handleOf(args[0])
	if err != nil {
		return vm.Value{}, err
	}
	c, ok := conns.get(id)
	if !ok {
		return vm.Value{}, fmt.Errorf("ws_send: unknown connection")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return vm.Value{}, fmt.Errorf("ws_send: connection is closed")
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(args[1].Str())); err != nil {
		return vm.Value{}, fmt.Errorf("ws_send: %w", err)
	}
	return vm.Null(), nil
}

// wsRecv(handle) -> str, blocking until a message arrives or the
// connection closes (in which case it returns null).
func wsRecv(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Value{}, fmt.Errorf("ws_recv expects (handle)")
	}
	id, err := handleOf(args[0])
	if err != nil {
		return vm.Value{}, err
	}
	c, ok := conns.get(id)
	if !ok {
		return vm.Value{}, fmt.Errorf("ws_recv: unknown connection")
	}
	data, ok := <-c.inbox
	if !ok {
		return vm.Null(), nil
	}
	return vm.StrValue(string(data), vmRef.Heap), nil
}

// wsClose(handle) -> null
func wsClose(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Value{}, fmt.Errorf("ws_close expects (handle)")
	}
	id, err := handleOf(args[0])
	if err != nil {
		return vm.Value{}, err
	}
	c, ok := conns.get(id)
	if !ok {
		return vm.Value{}, fmt.Errorf("ws_close: unknown connection")
	}
	c.mu.Lock()
	c.closed = true
	err = c.ws.Close()
	c.mu.Unlock()
	conns.drop(id)
	return vm.Null(), err
}

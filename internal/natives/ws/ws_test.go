package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/bytecode"
	"quill/internal/vm"
)

func newTestVM() *vm.VM {
	mod := bytecode.NewModule("test.ql", "")
	return vm.New(mod, map[string]vm.NativeFn{}, nil)
}

func TestHandleOfRejectsUntaggedValue(t *testing.T) {
	_, err := handleOf(vm.Int(3))
	assert.Error(t, err, "handleOf must reject a value not tagged WSConn")
}

func TestHandleOfRejectsMalformedTag(t *testing.T) {
	inner := vm.StrValue("not-an-int", newTestVM().Heap)
	tagged := vm.TaggedValue(tag, &inner, newTestVM().Heap)
	_, err := handleOf(tagged)
	assert.Error(t, err, "handleOf must reject a WSConn tag whose payload is not an int handle")
}

func TestHandleOfExtractsIntHandle(t *testing.T) {
	h := vm.Int(7)
	tagged := vm.TaggedValue(tag, &h, newTestVM().Heap)
	id, err := handleOf(tagged)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

// echoServer runs a real websocket endpoint that echoes every text message
// it receives, so ws_dial/ws_send/ws_recv/ws_close exercise the real
// gorilla/websocket client path end to end.
func echoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer c.Close()
		for {
			mt, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDialSendRecvCloseRoundTrip(t *testing.T) {
	srv := echoServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	machine := newTestVM()
	handle, err := wsDial(machine, []vm.Value{vm.StrValue(url, machine.Heap)})
	require.NoError(t, err)

	_, err = wsSend(machine, []vm.Value{handle, vm.StrValue("ping", machine.Heap)})
	require.NoError(t, err)

	reply, err := wsRecv(machine, []vm.Value{handle})
	require.NoError(t, err)
	require.True(t, reply.IsStr())
	assert.Equal(t, "ping", reply.Str())

	_, err = wsClose(machine, []vm.Value{handle})
	require.NoError(t, err)
}

func TestSendOnUnknownHandleErrors(t *testing.T) {
	machine := newTestVM()
	h := vm.Int(99999)
	tagged := vm.TaggedValue(tag, &h, machine.Heap)
	_, err := wsSend(machine, []vm.Value{tagged, vm.StrValue("x", machine.Heap)})
	assert.Error(t, err)
}

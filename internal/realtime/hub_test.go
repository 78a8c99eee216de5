package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesOnlyChannelSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	mine, cancelMine := hub.Subscribe(ChannelFor("u1"))
	defer cancelMine()
	other, cancelOther := hub.Subscribe(ChannelFor("u2"))
	defer cancelOther()

	hub.Publish(ChannelFor("u1"), map[string]string{"type": "COMMENT"})

	select {
	case data := <-mine:
		assert.JSONEq(t, `{"type":"COMMENT"}`, string(data))
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive message")
	}
	assert.Empty(t, other)
}

func TestHub_PublishWithoutSubscribersIsNoop(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	assert.NotPanics(t, func() { hub.Publish(ChannelFor("nobody"), map[string]string{"type": "FOLLOW"}) })
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	msgs, cancel := hub.Subscribe("c")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer*3; i++ {
			hub.Publish("c", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, msgs, sendBuffer)
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	_, cancel := hub.Subscribe("c")
	assert.Equal(t, 1, hub.Subscribers("c"))
	cancel()
	assert.Equal(t, 0, hub.Subscribers("c"))
}

func TestHub_ServeWritesToWebsocket(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, ChannelFor(r.URL.Query().Get("receiverId")))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?receiverId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers(ChannelFor("u1")) == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(ChannelFor("u1"), map[string]string{"type": "REACTED_TO_POST"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"REACTED_TO_POST"}`, string(data))

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers(ChannelFor("u1")) == 0 }, time.Second, 5*time.Millisecond)
}

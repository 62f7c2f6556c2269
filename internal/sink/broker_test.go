package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNats 只实现客户端用得到的协议子集：INFO、CONNECT、PING/PONG、PUB
func fakeNats(t *testing.T) (string, <-chan Message) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	got := make(chan Message, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		port := ln.Addr().(*net.TCPAddr).Port
		fmt.Fprintf(conn, "INFO {\"server_id\":\"fake\",\"version\":\"2.0.0\",\"host\":\"127.0.0.1\",\"port\":%d,\"max_payload\":1048576,\"proto\":1}\r\n", port)

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch strings.ToUpper(fields[0]) {
			case "PING":
				_, _ = io.WriteString(conn, "PONG\r\n")
			case "PUB":
				size, err := strconv.Atoi(fields[len(fields)-1])
				if err != nil {
					return
				}
				buf := make([]byte, size+2)
				if _, err := io.ReadFull(r, buf); err != nil {
					return
				}
				got <- Message{Topic: fields[1], Payload: buf[:size]}
			}
		}
	}()
	return "nats://" + ln.Addr().String(), got
}

func TestNatsBroker_PublishAndClose(t *testing.T) {
	url, got := fakeNats(t)

	b, err := NewNatsBroker(url)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "ticker:BTC-USD", []byte(`{"price":1}`)))
	// Close 必须先把缓冲里的 PUB 刷出去
	require.NoError(t, b.Close())

	select {
	case m := <-got:
		assert.Equal(t, "ticker.BTC-USD", m.Topic)
		assert.Equal(t, `{"price":1}`, string(m.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("publish was not flushed before close")
	}

	assert.NoError(t, b.Close())
	assert.Error(t, b.Publish(context.Background(), "ticker:BTC-USD", []byte("x")))
}

func TestNewNatsBroker_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewNatsBroker("nats://" + addr)
	assert.Error(t, err)
}

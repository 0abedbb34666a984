package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipePreservesTransfers(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	_, err := a.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = a.Write([]byte("world!"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "world!", string(buf[:n]))
}

func TestPipeSplitsLargeTransfer(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	_, err := a.Write([]byte("abcdef"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, _ := b.Read(buf)
	assert.Equal(t, "abcd", string(buf[:n]))
	n, _ = b.Read(buf)
	assert.Equal(t, "ef", string(buf[:n]))
}

func TestPipeZeroLengthPacket(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	_, err := a.Write(nil)
	require.NoError(t, err)

	n, err := b.Read(make([]byte, 8))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPipeClose(t *testing.T) {
	a, b := Pipe()
	_, err := a.Write([]byte("last"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	buf := make([]byte, 8)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "last", string(buf[:n]))

	_, err = b.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	_, err = b.Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.NoError(t, b.Close())
}

func TestPipeTransport(t *testing.T) {
	tr := NewPipeTransport()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opened := make(chan Conn, 1)
	go func() {
		c, err := tr.Open(ctx)
		if err == nil {
			opened <- c
		}
	}()

	host, err := tr.Dial(ctx)
	require.NoError(t, err)
	device := <-opened

	_, err = host.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := device.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	require.NoError(t, tr.Close())
	_, err = host.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	_, err = tr.Open(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPipeTransportOpenCancelled(t *testing.T) {
	tr := NewPipeTransport()
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTCPTransport(t *testing.T) {
	tr := NewTCP("127.0.0.1:0")
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opened := make(chan Conn, 1)
	errs := make(chan error, 1)
	go func() {
		c, err := tr.Open(ctx)
		if err != nil {
			errs <- err
			return
		}
		opened <- c
	}()

	select {
	case <-tr.Ready():
	case err := <-errs:
		t.Fatalf("open failed: %v", err)
	}

	client, err := net.Dial("tcp", tr.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	device := <-opened
	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(device, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	st, ok := device.(interface{ Stream() bool })
	require.True(t, ok, "tcp conns must report themselves as streams")
	assert.True(t, st.Stream())

	assert.Equal(t, "tcp:127.0.0.1:0", tr.String())
}

func TestTCPTransportOpenCancelled(t *testing.T) {
	tr := NewTCP("127.0.0.1:0")
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-tr.Ready()
		cancel()
	}()
	_, err := tr.Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTCPTransportClosed(t *testing.T) {
	tr := NewTCP("127.0.0.1:0")
	require.NoError(t, tr.Close())
	_, err := tr.Open(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUSBDeviceMissingPath(t *testing.T) {
	d := NewUSBDevice(t.TempDir() + "/missing")
	_, err := d.Open(context.Background())
	assert.Error(t, err)
	assert.Contains(t, d.String(), "usb:")

	require.NoError(t, d.Close())
	_, err = d.Open(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUSBDeviceDefaultPath(t *testing.T) {
	assert.Equal(t, "usb:"+DefaultDevicePath, NewUSBDevice("").String())
}

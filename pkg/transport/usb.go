package transport

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/marmos91/mtpd/internal/logger"
)

// DefaultDevicePath is the character device exported by the MTP gadget
// function driver.
const DefaultDevicePath = "/dev/mtp_usb"

// USBDevice is the transport backed by the MTP gadget function driver. Bulk
// transfers are plain read and write calls on the character device; events
// travel on the interrupt endpoint through an ioctl.
type USBDevice struct {
	path string

	mu     sync.Mutex
	conn   *usbConn
	closed bool
}

// NewUSBDevice creates a transport for the character device at path.
func NewUSBDevice(path string) *USBDevice {
	if path == "" {
		path = DefaultDevicePath
	}
	return &USBDevice{path: path}
}

// Open opens the character device. The driver accepts the open while no
// host is attached; reads then block until one is.
func (d *USBDevice) Open(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}

	f, err := os.OpenFile(d.path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.path, err)
	}
	d.conn = &usbConn{f: f}
	logger.Debug("USB gadget device opened", logger.Path(d.path))
	return d.conn, nil
}

// Close closes the device and any open Conn.
func (d *USBDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		return err
	}
	return nil
}

func (d *USBDevice) String() string {
	return "usb:" + d.path
}

type usbConn struct {
	f    *os.File
	once sync.Once
	err  error
}

func (c *usbConn) Read(p []byte) (int, error) {
	return c.f.Read(p)
}

func (c *usbConn) Write(p []byte) (int, error) {
	return c.f.Write(p)
}

// WriteEvent sends an event container on the interrupt endpoint.
func (c *usbConn) WriteEvent(b []byte) error {
	return sendEvent(c.f, b)
}

func (c *usbConn) Close() error {
	c.once.Do(func() {
		c.err = c.f.Close()
	})
	return c.err
}

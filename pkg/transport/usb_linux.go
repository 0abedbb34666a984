//go:build linux

package transport

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mtpEvent mirrors struct mtp_event of the gadget driver: a length and a
// pointer to the event container.
type mtpEvent struct {
	length uintptr
	data   uintptr
}

// ioctlMTPSendEvent is _IOW('M', 3, struct mtp_event).
var ioctlMTPSendEvent = uintptr(0x40004D03 | unsafe.Sizeof(mtpEvent{})<<16)

func sendEvent(f *os.File, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	ev := mtpEvent{
		length: uintptr(len(b)),
		data:   uintptr(unsafe.Pointer(&b[0])),
	}

	conn, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var errno unix.Errno
	ctrlErr := conn.Control(func(fd uintptr) {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, fd, ioctlMTPSendEvent, uintptr(unsafe.Pointer(&ev)))
	})
	runtime.KeepAlive(b)
	if ctrlErr != nil {
		return ctrlErr
	}
	if errno != 0 {
		return fmt.Errorf("MTP_SEND_EVENT: %w", errno)
	}
	return nil
}

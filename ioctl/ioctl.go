// Package ioctl encodes Linux ioctl request numbers and issues them.
package ioctl

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	typeBits      = 8
	numberBits    = 8
	sizeBits      = 14
	directionBits = 2

	numberMask    = (1 << numberBits) - 1
	typeMask      = (1 << typeBits) - 1
	sizeMask      = (1 << sizeBits) - 1
	directionMask = (1 << directionBits) - 1

	directionNone  = 0
	directionWrite = 1
	directionRead  = 2

	numberShift    = 0
	typeShift      = numberShift + numberBits
	sizeShift      = typeShift + typeBits
	directionShift = sizeShift + sizeBits
)

func ioc(dir, t, nr, size uintptr) uintptr {
	return ((dir & directionMask) << directionShift) |
		((t & typeMask) << typeShift) |
		((nr & numberMask) << numberShift) |
		((size & sizeMask) << sizeShift)
}

// Io is _IO: a request without an argument.
func Io(t, nr uintptr) uintptr {
	return ioc(directionNone, t, nr, 0)
}

// IoR is _IOR: the kernel writes size bytes back to userspace.
func IoR(t, nr, size uintptr) uintptr {
	return ioc(directionRead, t, nr, size)
}

// IoW is _IOW: the kernel reads size bytes from userspace.
func IoW(t, nr, size uintptr) uintptr {
	return ioc(directionWrite, t, nr, size)
}

// IoRW is _IOWR.
func IoRW(t, nr, size uintptr) uintptr {
	return ioc(directionRead|directionWrite, t, nr, size)
}

// rawIoctl issues the system call. Tests replace it.
var rawIoctl = func(fd, request, arg uintptr) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, request, arg)
	return errno
}

// Ioctl issues request on fd with arg pointing at the request struct.
// Interrupted calls are reissued; any other errno is returned as is.
func Ioctl(fd, request uintptr, arg unsafe.Pointer) error {
	for {
		switch errno := rawIoctl(fd, request, uintptr(arg)); errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

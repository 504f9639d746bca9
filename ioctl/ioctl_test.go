package ioctl

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestRequestEncoding(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"querycap", IoR('V', 0, 104), 0x80685600},
		{"enum_fmt", IoRW('V', 2, 64), 0xc0405602},
		{"streamon", IoW('V', 18, 4), 0x40045612},
		{"streamoff", IoW('V', 19, 4), 0x40045613},
		{"g_std", IoR('V', 23, 8), 0x80085617},
		{"none", Io('V', 1), 0x5601},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %#x, want %#x", tt.got, tt.want)
			}
		})
	}
}

func TestIoctlBadDescriptor(t *testing.T) {
	if err := Ioctl(^uintptr(0), IoW('V', 18, 4), nil); err == nil {
		t.Fatal("expected error on invalid descriptor")
	}
}

func TestIoctlRetriesInterrupted(t *testing.T) {
	orig := rawIoctl
	defer func() { rawIoctl = orig }()

	tests := []struct {
		name    string
		replies []unix.Errno
		want    error
		calls   int
	}{
		{"interrupted once", []unix.Errno{unix.EINTR, 0}, nil, 2},
		{"interrupted twice", []unix.Errno{unix.EINTR, unix.EINTR, 0}, nil, 3},
		{"interrupted then busy", []unix.Errno{unix.EINTR, unix.EBUSY}, unix.EBUSY, 2},
		{"not retried", []unix.Errno{unix.EAGAIN}, unix.EAGAIN, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			rawIoctl = func(fd, request, arg uintptr) unix.Errno {
				errno := tt.replies[calls]
				calls++
				return errno
			}
			if err := Ioctl(3, IoW('V', 18, 4), nil); err != tt.want {
				t.Errorf("Ioctl = %v, want %v", err, tt.want)
			}
			if calls != tt.calls {
				t.Errorf("issued %d times, want %d", calls, tt.calls)
			}
		})
	}
}

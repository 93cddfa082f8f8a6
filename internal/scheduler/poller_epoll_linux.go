//go:build linux

package scheduler

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller is the primary backend on Linux, grounded directly on the
// reference EpollTaskScheduler: one epoll instance, level-triggered,
// returning at most one ready fd per Wait call so the event loop always
// re-checks the timer queue and triggers between socket callbacks.
type epollPoller struct {
	epfd int
}

func newEpollPoller() (*epollPoller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("scheduler: epoll_create1: %w", err)
	}
	return &epollPoller{epfd: fd}, nil
}

func toEpollEvents(mask IOCondition) uint32 {
	var ev uint32
	if mask&IOReadable != 0 {
		ev |= unix.EPOLLIN
	}
	if mask&IOWritable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epollPoller) Add(fd int, mask IOCondition) error {
	ev := &unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) Modify(fd int, mask IOCondition) error {
	// Mirror the reference design: delete then add, so replacing an
	// existing registration is atomic from the kernel's point of view.
	_ = p.Remove(fd)
	return p.Add(fd, mask)
}

func (p *epollPoller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wait(timeout time.Duration) ([]readyFD, error) {
	timeout = clampDelay(timeout)
	timeoutMS := int(timeout / time.Millisecond)
	if timeout > 0 && timeoutMS == 0 {
		timeoutMS = 1
	}

	var events [1]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, events[:], timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduler: epoll_wait: %w", err)
	}
	if n <= 0 {
		return nil, nil
	}

	var conditions IOCondition
	if events[0].Events&unix.EPOLLIN != 0 {
		conditions |= IOReadable
	}
	if events[0].Events&unix.EPOLLOUT != 0 {
		conditions |= IOWritable
	}
	if events[0].Events&unix.EPOLLERR != 0 {
		conditions |= IOException
	}
	return []readyFD{{fd: int(events[0].Fd), conditions: conditions}}, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func newDefaultPoller() (poller, error) {
	return newEpollPoller()
}

const defaultBackendName = "epoll"

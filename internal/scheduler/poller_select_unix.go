//go:build unix && !linux

package scheduler

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// selectPoller is the portable backend for non-Linux unix platforms
// (darwin, bsd family), grounded on BasicTaskScheduler0.cpp's select()
// backend. Unlike epoll it reports every ready fd in one Wait call.
type selectPoller struct {
	masks map[int]IOCondition
}

func newSelectPoller() (*selectPoller, error) {
	return &selectPoller{masks: make(map[int]IOCondition)}, nil
}

// fdSetBit and fdIsSet work around golang.org/x/sys/unix.FdSet exposing its
// bitmap as a plain array rather than Set/IsSet helpers (those only exist
// in the standard library's internal syscall package).
func fdSetBit(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

func (p *selectPoller) Add(fd int, mask IOCondition) error {
	p.masks[fd] = mask
	return nil
}

func (p *selectPoller) Modify(fd int, mask IOCondition) error {
	p.masks[fd] = mask
	return nil
}

func (p *selectPoller) Remove(fd int) error {
	delete(p.masks, fd)
	return nil
}

func (p *selectPoller) Wait(timeout time.Duration) ([]readyFD, error) {
	timeout = clampDelay(timeout)

	var readFDs, writeFDs, exceptFDs unix.FdSet
	maxFD := -1
	for fd, mask := range p.masks {
		if mask&IOReadable != 0 {
			fdSetBit(&readFDs, fd)
		}
		if mask&IOWritable != 0 {
			fdSetBit(&writeFDs, fd)
		}
		fdSetBit(&exceptFDs, fd)
		if fd > maxFD {
			maxFD = fd
		}
	}
	if maxFD < 0 {
		// Nothing registered: just sleep out the timeout, like a select()
		// on an empty set would effectively do.
		time.Sleep(timeout)
		return nil, nil
	}

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(maxFD+1, &readFDs, &writeFDs, &exceptFDs, &tv)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduler: select: %w", err)
	}
	if n <= 0 {
		return nil, nil
	}

	ready := make([]readyFD, 0, n)
	for fd, mask := range p.masks {
		var conditions IOCondition
		if mask&IOReadable != 0 && fdIsSet(&readFDs, fd) {
			conditions |= IOReadable
		}
		if mask&IOWritable != 0 && fdIsSet(&writeFDs, fd) {
			conditions |= IOWritable
		}
		if fdIsSet(&exceptFDs, fd) {
			conditions |= IOException
		}
		if conditions != 0 {
			ready = append(ready, readyFD{fd: fd, conditions: conditions})
		}
	}
	return ready, nil
}

func (p *selectPoller) Close() error { return nil }

func newDefaultPoller() (poller, error) {
	return newSelectPoller()
}

const defaultBackendName = "select"

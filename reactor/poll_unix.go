//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd
// +build linux darwin dragonfly freebsd netbsd openbsd

// File: reactor/poll_unix.go
// Author: momentics <momentics@gmail.com>
//
// Portable poll(2) multiplexer with a self-pipe for wakeups.

package reactor

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ev/api"
)

func init() {
	Register("poll", 10, newPoll)
}

type pollMux struct {
	mu       sync.Mutex // Update may run on another goroutine while Poll is parked
	wake     [2]int
	closed   bool
	interest map[int]api.Condition
	order    []int // fds in registration order
	pfds     []unix.PollFd
}

func newPoll(cfg Config) (api.Multiplexer, error) {
	p := &pollMux{
		interest: make(map[int]api.Condition),
		pfds:     make([]unix.PollFd, 0, cfg.maxEvents()),
	}
	if err := p.openPipe(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pollMux) openPipe() error {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return fmt.Errorf("pipe: %w", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return fmt.Errorf("pipe nonblock: %w", err)
		}
	}
	p.wake = fds
	return nil
}

func (p *pollMux) Name() string { return "poll" }

// Update records interest; poll(2) validates descriptors only when polling.
func (p *pollMux) Update(fd int, old, new api.Condition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrClosed
	}
	if fd < 0 {
		return unix.EBADF
	}
	if !new.IO() {
		if _, ok := p.interest[fd]; ok {
			delete(p.interest, fd)
			for i, f := range p.order {
				if f == fd {
					p.order = append(p.order[:i], p.order[i+1:]...)
					break
				}
			}
		}
		return nil
	}
	if _, ok := p.interest[fd]; !ok {
		p.order = append(p.order, fd)
	}
	p.interest[fd] = new & (api.EvRead | api.EvWrite)
	return nil
}

func (p *pollMux) Poll(timeout time.Duration, ready []api.Ready) ([]api.Ready, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ready, api.ErrClosed
	}
	p.pfds = append(p.pfds[:0], unix.PollFd{Fd: int32(p.wake[0]), Events: unix.POLLIN})
	for _, fd := range p.order {
		var events int16
		c := p.interest[fd]
		if c&api.EvRead != 0 {
			events |= unix.POLLIN
		}
		if c&api.EvWrite != 0 {
			events |= unix.POLLOUT
		}
		p.pfds = append(p.pfds, unix.PollFd{Fd: int32(fd), Events: events})
	}
	p.mu.Unlock()

	n, err := unix.Poll(p.pfds, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return ready, nil
		}
		return ready, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return ready, nil
	}
	if p.pfds[0].Revents != 0 {
		p.drain()
	}
	for _, pfd := range p.pfds[1:] {
		if pfd.Revents == 0 {
			continue
		}
		var what api.Condition
		if pfd.Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			what = api.EvRead | api.EvWrite
		} else {
			if pfd.Revents&unix.POLLIN != 0 {
				what |= api.EvRead
			}
			if pfd.Revents&unix.POLLOUT != 0 {
				what |= api.EvWrite
			}
		}
		if what != 0 {
			ready = append(ready, api.Ready{Fd: int(pfd.Fd), What: what})
		}
	}
	return ready, nil
}

func (p *pollMux) drain() {
	var buf [64]byte
	for {
		if n, err := unix.Read(p.wake[0], buf[:]); err != nil || n < len(buf) {
			return
		}
	}
}

func (p *pollMux) Wakeup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrClosed
	}
	if _, err := unix.Write(p.wake[1], []byte{1}); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("wake pipe write: %w", err)
	}
	return nil
}

// Reinit replaces the wake pipe and forgets every registered fd.
func (p *pollMux) Reinit() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrClosed
	}
	_ = unix.Close(p.wake[0])
	_ = unix.Close(p.wake[1])
	p.interest = make(map[int]api.Condition)
	p.order = p.order[:0]
	if err := p.openPipe(); err != nil {
		p.closed = true
		return err
	}
	return nil
}

func (p *pollMux) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrClosed
	}
	p.closed = true
	err := unix.Close(p.wake[0])
	if cerr := unix.Close(p.wake[1]); err == nil {
		err = cerr
	}
	return err
}

//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ev/api"
)

const maxEpollEvents = 4096

func init() {
	Register("epoll", 20, newEpoll)
}

// epollMux implements api.Multiplexer using epoll and an eventfd for wakeups.
type epollMux struct {
	mu     sync.Mutex // guards epfd/efd/closed against Wakeup from other goroutines
	epfd   int
	efd    int
	closed bool
	events []unix.EpollEvent
}

func newEpoll(cfg Config) (api.Multiplexer, error) {
	ep := &epollMux{events: make([]unix.EpollEvent, cfg.maxEvents())}
	if err := ep.open(); err != nil {
		return nil, err
	}
	return ep, nil
}

func (ep *epollMux) open() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll create: %w", err)
	}
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(efd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, efd, &ev); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(efd)
		return fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	ep.epfd, ep.efd = epfd, efd
	return nil
}

func (ep *epollMux) Name() string { return "epoll" }

func epollMask(c api.Condition) uint32 {
	var m uint32
	if c&api.EvRead != 0 {
		m |= unix.EPOLLIN
	}
	if c&api.EvWrite != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

// Update adds, modifies or removes interest for fd.
func (ep *epollMux) Update(fd int, old, new api.Condition) error {
	if ep.isClosed() {
		return api.ErrClosed
	}
	op := unix.EPOLL_CTL_MOD
	switch {
	case !new.IO():
		op = unix.EPOLL_CTL_DEL
	case !old.IO():
		op = unix.EPOLL_CTL_ADD
	}
	ev := unix.EpollEvent{Events: epollMask(new), Fd: int32(fd)}
	err := unix.EpollCtl(ep.epfd, op, fd, &ev)
	if err == nil {
		return nil
	}
	switch op {
	case unix.EPOLL_CTL_ADD:
		// dup'ed fd still present in the kernel set
		if err == unix.EEXIST {
			return unix.EpollCtl(ep.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
		}
	case unix.EPOLL_CTL_MOD:
		if err == unix.ENOENT {
			return unix.EpollCtl(ep.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
		}
	case unix.EPOLL_CTL_DEL:
		// fd already closed by the caller
		if err == unix.ENOENT || err == unix.EBADF || err == unix.EPERM {
			return nil
		}
	}
	return err
}

// Poll waits for readiness; the eventfd is drained and never reported.
func (ep *epollMux) Poll(timeout time.Duration, ready []api.Ready) ([]api.Ready, error) {
	if ep.isClosed() {
		return ready, api.ErrClosed
	}
	n, err := unix.EpollWait(ep.epfd, ep.events, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return ready, nil
		}
		return ready, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := ep.events[i]
		fd := int(ev.Fd)
		if fd == ep.efd {
			ep.drain()
			continue
		}
		var what api.Condition
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			what = api.EvRead | api.EvWrite
		} else {
			if ev.Events&unix.EPOLLIN != 0 {
				what |= api.EvRead
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				what |= api.EvWrite
			}
		}
		if what != 0 {
			ready = append(ready, api.Ready{Fd: fd, What: what})
		}
	}
	if n == len(ep.events) && n < maxEpollEvents {
		ep.events = make([]unix.EpollEvent, 2*n)
	}
	return ready, nil
}

func (ep *epollMux) drain() {
	var buf [8]byte
	for {
		if _, err := unix.Read(ep.efd, buf[:]); err != nil {
			return
		}
	}
}

// Wakeup increments the eventfd counter.
func (ep *epollMux) Wakeup() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.closed {
		return api.ErrClosed
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(ep.efd, buf[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Reinit recreates the epoll instance and eventfd. The interest set is empty afterwards.
func (ep *epollMux) Reinit() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.closed {
		return api.ErrClosed
	}
	_ = unix.Close(ep.epfd)
	_ = unix.Close(ep.efd)
	if err := ep.open(); err != nil {
		ep.closed = true
		return err
	}
	return nil
}

// Close releases the epoll and eventfd descriptors.
func (ep *epollMux) Close() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.closed {
		return api.ErrClosed
	}
	ep.closed = true
	err := unix.Close(ep.epfd)
	if cerr := unix.Close(ep.efd); err == nil {
		err = cerr
	}
	return err
}

func (ep *epollMux) isClosed() bool {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.closed
}

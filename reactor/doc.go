// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the OS readiness multiplexers behind api.Multiplexer:
// epoll on Linux and poll(2) on Unix systems, selected through a small
// priority-ordered registry.
package reactor

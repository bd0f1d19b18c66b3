package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/waywire-dev/waywire/pkg/backend"
	"github.com/waywire-dev/waywire/pkg/core"
	"github.com/waywire-dev/waywire/pkg/transport"
	"github.com/waywire-dev/waywire/pkg/wire"
)

type global struct {
	name    uint32
	iface   string
	version uint32
}

func inspectCmd() *cobra.Command {
	var socket string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the globals a display server advertises",
		Long: `Connect to the display socket, bind the registry, and print every
global the server advertises, then disconnect.

Examples:
  waywire inspect
  waywire inspect --socket /run/user/1000/wayland-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(socket)
		},
	}

	cmd.Flags().StringVarP(&socket, "socket", "s", "", "Display socket path (default: $WAYLAND_DISPLAY)")

	return cmd
}

func connect(socket string) (*transport.Unix, error) {
	if socket != "" {
		return transport.Dial(socket)
	}
	return transport.DialDisplay()
}

func runInspect(socket string) error {
	t, err := connect(socket)
	if err != nil {
		return err
	}

	b := backend.New(t, backend.RoleClient, backend.Config{})
	defer b.Close()

	var globals []global
	regH := backend.HandlerFunc(func(_ *backend.Backend, _ backend.ObjectID, opcode uint16, args []wire.Arg) {
		if opcode == core.RegistryEventGlobal {
			globals = append(globals, global{name: args[0].U, iface: args[1].S, version: args[2].U})
		}
	})
	if _, err := b.SendConstructor(b.DisplayID(), core.DisplayGetRegistry,
		[]wire.Arg{wire.NewIDArg(0)}, nil, 0, regH, nil); err != nil {
		return err
	}

	// A sync after get_registry fences the initial burst of globals.
	if err := roundtrip(b); err != nil {
		return err
	}

	sort.Slice(globals, func(i, j int) bool { return globals[i].iface < globals[j].iface })
	for _, g := range globals {
		fmt.Printf("%-44s version %-3d (name %d)\n", g.iface, g.version, g.name)
	}
	fmt.Printf("\n%d globals\n", len(globals))
	return nil
}

// roundtrip issues a sync and pumps the connection until its callback
// fires, guaranteeing the server has processed everything sent before.
func roundtrip(b *backend.Backend) error {
	done := false
	h := backend.HandlerFunc(func(_ *backend.Backend, _ backend.ObjectID, _ uint16, _ []wire.Arg) {
		done = true
	})
	if _, err := b.SendConstructor(b.DisplayID(), core.DisplaySync,
		[]wire.Arg{wire.NewIDArg(0)}, nil, 0, h, nil); err != nil {
		return err
	}
	for !done {
		if err := pumpOnce(b); err != nil {
			return err
		}
	}
	return nil
}

// pumpOnce flushes pending writes, waits for the socket, and dispatches
// whatever arrived.
func pumpOnce(b *backend.Backend) error {
	fd, ok := b.Fd()
	if !ok {
		return errors.New("transport has no pollable descriptor")
	}
	events := int16(unix.POLLIN)
	if err := b.Flush(); err != nil {
		if !errors.Is(err, transport.ErrWouldBlock) {
			return err
		}
		events |= unix.POLLOUT
	}
	pfd := []unix.PollFd{{Fd: int32(fd), Events: events}}
	if _, err := unix.Poll(pfd, 5000); err != nil && err != unix.EINTR {
		return err
	}
	_, err := b.DispatchPending()
	return err
}

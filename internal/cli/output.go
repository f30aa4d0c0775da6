package cli

import (
	"errors"

	"github.com/gibridargos/live-suhbat/internal/peer"
	"github.com/pterm/pterm"
)

func printChat(at, user, msg string) {
	if at != "" {
		pterm.Printfln("%s %s %s", pterm.Gray(at), pterm.FgCyan.Sprint(user+":"), msg)
		return
	}
	pterm.Printfln("%s %s", pterm.FgCyan.Sprint(user+":"), msg)
}

func printPeerState(name string, s peer.State) {
	switch s {
	case peer.Connected:
		pterm.Success.Printfln("%s connected", name)
	case peer.Negotiating:
		pterm.Info.Printfln("%s negotiating", name)
	}
}

func printPeerClosed(name string, reason error) {
	switch {
	case errors.Is(reason, peer.ErrPeerClosed):
		pterm.Info.Printfln("%s disconnected", name)
	case reason != nil:
		pterm.Warning.Printfln("%s dropped: %v", name, reason)
	}
}

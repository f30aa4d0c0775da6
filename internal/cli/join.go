package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gibridargos/live-suhbat/internal/adapters/rtc"
	"github.com/gibridargos/live-suhbat/internal/client"
	"github.com/gibridargos/live-suhbat/internal/config"
	"github.com/gibridargos/live-suhbat/internal/peer"
	"github.com/gibridargos/live-suhbat/internal/protocol"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newJoinCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join <room>",
		Short: "Join a room, connect to every participant and chat from stdin",
		Long: `Join a room and stay in it until interrupted. Lines typed on stdin are sent
as chat. Commands:
  /who           show own identity
  /peers         list peer connections
  /leave         leave the room, keep the connection
  /join <room>   join another room
  /quit          exit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd.Context(), v, args[0], os.Stdin)
		},
	}
	f := cmd.Flags()
	f.String("user", "", "display name (defaults to the login name, then guest)")
	f.String("password", "", "log in with this password before joining")
	f.String("stun", "", "STUN server URL, overrides the server's ICE config")
	f.Duration("negotiation-timeout", peer.DefaultNegotiationTimeout, "close peers that do not connect in time")
	_ = v.BindPFlag("user", f.Lookup("user"))
	_ = v.BindPFlag("password", f.Lookup("password"))
	_ = v.BindPFlag("stun", f.Lookup("stun"))
	_ = v.BindPFlag("negotiation_timeout", f.Lookup("negotiation-timeout"))
	return cmd
}

func runJoin(ctx context.Context, v *viper.Viper, room string, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := v.GetString("server")
	a := newAPI(server)
	user := v.GetString("user")

	var header http.Header
	if password := v.GetString("password"); password != "" {
		if user == "" {
			return errors.New("--password needs --user")
		}
		h, account, err := a.login(ctx, user, password)
		if err != nil {
			return err
		}
		header = h
		pterm.Success.Printfln("Logged in as %s", account.Username)
	}
	if user == "" {
		user = "guest"
	}

	var servers []config.ICEServer
	if stun := v.GetString("stun"); stun != "" {
		servers = []config.ICEServer{{URLs: []string{stun}}}
	} else if fetched, err := a.iceServers(ctx); err == nil {
		servers = fetched
	} else {
		log.Warn().Err(err).Str("module", "cli").Msg("ice config unavailable, using default STUN")
	}
	webCfg := rtc.WebRTCConfig(servers)

	wsURL, err := signalURL(server)
	if err != nil {
		return err
	}
	c, err := client.Dial(ctx, wsURL, header)
	if err != nil {
		return err
	}
	defer c.Close()

	silence, err := rtc.NewSilenceTrack("live-suhbat-" + user)
	if err != nil {
		return err
	}
	go silence.Run(ctx)

	factory := func(id string) (peer.Transport, error) {
		conn, err := rtc.NewConnection(ctx, webCfg, id, silence.Track)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	var sess *client.Session
	name := func(id string) string {
		if n := sess.Name(id); n != "" {
			return n
		}
		if len(id) > 8 {
			return id[:8]
		}
		return id
	}
	var currentRoom atomic.Value
	currentRoom.Store(room)
	sess = client.NewSession(c, factory, v.GetDuration("negotiation_timeout"), client.Events{
		OnSession: func(id string) {
			log.Info().Str("module", "cli").Str("sid", id).Msg("session")
			if err := c.JoinRoom(currentRoom.Load().(string), user); err != nil {
				pterm.Error.Println(err.Error())
			}
		},
		OnRoster: func(ids []string) {
			pterm.Info.Printfln("Joined %s as %s, %d other participant(s)", currentRoom.Load(), user, len(ids))
		},
		OnJoined: func(id, u string) { pterm.Info.Printfln("%s joined", u) },
		OnLeft:   func(id string) { pterm.Info.Printfln("%s left", name(id)) },
		OnChat: func(m protocol.ChatPayload) {
			printChat(time.Now().Format("15:04:05"), m.User, m.Msg)
		},
		OnWhoAmI: func(w protocol.WhoAmIPayload) {
			pterm.Info.Printfln("id=%s user=%s room=%s", w.ID, w.User, w.Room)
		},
		OnError: func(e protocol.ErrorPayload) {
			pterm.Warning.Printfln("%s: %s", e.Op, e.Msg)
		},
		OnPeerState:  func(id string, s peer.State) { printPeerState(name(id), s) },
		OnStream:     func(id string, s peer.Stream) { pterm.Info.Printfln("receiving %s from %s", s.Kind, name(id)) },
		OnPeerClosed: func(id string, reason error) { printPeerClosed(name(id), reason) },
	})

	go readInput(ctx, cancel, in, c, sess, func(r string) { currentRoom.Store(r) }, user)

	err = sess.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func readInput(ctx context.Context, cancel context.CancelFunc, in io.Reader, c *client.Client, sess *client.Session, setRoom func(string), user string) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := handleLine(ctx, line, c, sess, setRoom, user); err != nil {
			if errors.Is(err, errQuit) {
				cancel()
				return
			}
			pterm.Error.Println(err.Error())
		}
	}
}

var errQuit = errors.New("quit")

func handleLine(ctx context.Context, line string, c *client.Client, sess *client.Session, setRoom func(string), user string) error {
	if !strings.HasPrefix(line, "/") {
		return c.Chat(line)
	}
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit":
		return errQuit
	case "/who":
		return c.WhoAmI()
	case "/leave":
		return sess.Leave(ctx)
	case "/join":
		arg = strings.TrimSpace(arg)
		if arg == "" {
			return errors.New("usage: /join <room>")
		}
		if err := sess.Leave(ctx); err != nil {
			return err
		}
		setRoom(arg)
		return c.JoinRoom(arg, user)
	case "/peers":
		m := sess.Manager()
		if m == nil {
			return nil
		}
		data := [][]string{{"Peer", "Role", "State"}}
		for _, id := range m.Peers() {
			if p, ok := m.Peer(id); ok {
				data = append(data, []string{sess.Name(id) + " " + id, p.Role().String(), p.State().String()})
			}
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	default:
		return fmt.Errorf("unknown command %s", cmd)
	}
}

// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pion/logging"
	"github.com/pion/sctpsock/endpoint"
	"github.com/pion/sctpsock/internal/config"
	"github.com/pion/sctpsock/socket"
	"github.com/spf13/cobra"
)

const readChunkSize = 64 * 1024

var errConnectionLost = errors.New("cli: connection lost")

type socketOptions struct {
	Profile      string
	Host         string
	Port         int
	LocalAddress []string
	LocalPort    int
	MIS          uint16
	OS           uint16
	Protocol     uint32
	Stream       uint16
	Unordered    bool
	AcceptAny    bool
}

type override struct {
	flag    string
	section config.Section
	key     string
	value   any
}

// overrides lists every flag that maps onto a profile value.
func (o *socketOptions) overrides() []override {
	return []override{
		{"host", config.SectionConnect, "host", o.Host},
		{"port", config.SectionConnect, "port", o.Port},
		{"local-address", config.SectionConnect, "localAddress", o.LocalAddress},
		{"local-port", config.SectionConnect, "localPort", o.LocalPort},
		{"mis", config.SectionConnect, "MIS", o.MIS},
		{"os", config.SectionConnect, "OS", o.OS},
		{"protocol", config.SectionSend, socket.ParamProtocol, o.Protocol},
		{"stream", config.SectionSend, socket.ParamStream, o.Stream},
		{"unordered", config.SectionSend, socket.ParamUnordered, o.Unordered},
	}
}

// resolve loads the profile and lets every flag set on the command line
// replace the profile value.
func (o *socketOptions) resolve(changed func(string) bool, listen bool) (config.Session, error) {
	profile, err := config.Load(o.Profile)
	if err != nil {
		return config.Session{}, err
	}
	for _, ov := range o.overrides() {
		if changed(ov.flag) {
			profile.Set(ov.section, ov.key, ov.value)
		}
	}
	if listen {
		profile.Set(config.SectionConnect, "listen", true)
	}

	session, err := profile.Resolve()
	if err != nil {
		return config.Session{}, err
	}
	if o.AcceptAny {
		session.Connect.Accept = socket.AcceptAny
	}

	return session, nil
}

func addSocketFlags(cmd *cobra.Command, opts *socketOptions) {
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "YAML socket profile")
	cmd.Flags().StringVar(&opts.Host, "host", socket.DefaultHost, "remote address")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "remote port")
	cmd.Flags().StringSliceVar(&opts.LocalAddress, "local-address", nil, "local IPv4 addresses (comma-separated)")
	cmd.Flags().IntVar(&opts.LocalPort, "local-port", 0, "local port (0=ephemeral)")
	cmd.Flags().Uint16Var(&opts.MIS, "mis", 0, "requested inbound streams")
	cmd.Flags().Uint16Var(&opts.OS, "os", 0, "requested outbound streams")
	cmd.Flags().Uint32Var(&opts.Protocol, "protocol", 0, "payload protocol identifier for writes")
	cmd.Flags().Uint16Var(&opts.Stream, "stream", 0, "stream id for writes")
	cmd.Flags().BoolVar(&opts.Unordered, "unordered", false, "send writes unordered")
}

func newConnectCmd(root *rootOptions) *cobra.Command {
	opts := &socketOptions{}
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Dial a peer and pipe stdin and stdout over the association",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSocketCmd(cmd, root, opts, false)
		},
	}
	addSocketFlags(cmd, opts)

	return cmd
}

func newListenCmd(root *rootOptions) *cobra.Command {
	opts := &socketOptions{}
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Wait for a peer and pipe stdin and stdout over the association",
		Long: `listen binds the local port and waits for the peer given by --host and
--port. Associations from other peers are aborted unless --accept-any is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSocketCmd(cmd, root, opts, true)
		},
	}
	addSocketFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.AcceptAny, "accept-any", false, "accept the first peer regardless of its address")

	return cmd
}

func runSocketCmd(cmd *cobra.Command, root *rootOptions, opts *socketOptions, listen bool) error {
	lf, err := newLoggerFactory(root.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	session, err := opts.resolve(cmd.Flags().Changed, listen)
	if err != nil {
		return err
	}

	cfg := endpoint.DefaultConfig()
	cfg.LoggerFactory = lf

	return runSocket(cmd.Context(), cfg, session, cmd.InOrStdin(), cmd.OutOrStdout())
}

// runSocket connects a socket described by session, copies in to the peer and
// everything received to out. It returns once the association is gone.
func runSocket(ctx context.Context, cfg endpoint.Config, session config.Session, in io.Reader, out io.Writer) error {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	log := lf.NewLogger("cli")
	sock := socket.New(socket.Config{
		EndpointFactory:   endpoint.NewFactory(cfg),
		DefaultSendParams: session.Send,
		LoggerFactory:     lf,
	})
	defer func() {
		_ = sock.Close()
	}()

	connected := make(chan struct{})
	ended := make(chan struct{})
	closed := make(chan socket.CloseInfo, 1)
	failed := make(chan error, 1)
	sock.OnData(func(p []byte) {
		if _, err := out.Write(p); err != nil {
			log.Warnf("write output: %v", err)
		}
	})
	sock.OnEnd(func() { close(ended) })
	sock.OnClose(func(info socket.CloseInfo) { closed <- info })
	sock.OnError(func(err error) {
		log.Errorf("%v", err)
		select {
		case failed <- err:
		default:
		}
	})

	opts := session.Connect
	if err := sock.Connect(&opts, func() { close(connected) }); err != nil {
		return err
	}

	select {
	case <-connected:
	case info := <-closed:
		return closeError(info)
	case err := <-failed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Infof("connected %s -> %s", sock.LocalAddr(), sock.RemoteAddr())
	sock.SetAssocInfo(session.Assoc)
	sock.SetPeerAddrParams(session.Peer)
	go copyInput(sock, in, log)

	select {
	case <-ended:
		return nil
	case info := <-closed:
		return closeError(info)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// copyInput writes every chunk read from in as one message and ends the
// socket at EOF.
func copyInput(sock *socket.Socket, in io.Reader, log logging.LeveledLogger) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			msg := append([]byte(nil), buf[:n]...)
			if _, werr := sock.Write(msg); werr != nil {
				log.Warnf("send: %v", werr)
				_ = sock.Destroy(werr)

				return
			}
		}
		if errors.Is(err, io.EOF) {
			sock.End(func(err error) {
				if err != nil {
					log.Warnf("shutdown: %v", err)
				}
			})

			return
		}
		if err != nil {
			log.Warnf("read input: %v", err)
			_ = sock.Destroy(err)

			return
		}
	}
}

func closeError(info socket.CloseInfo) error {
	if info.Aborted {
		if info.Err != nil {
			return fmt.Errorf("%w: aborted: %w", errConnectionLost, info.Err)
		}

		return fmt.Errorf("%w: aborted", errConnectionLost)
	}
	if info.Reason != "" {
		return fmt.Errorf("%w: %s: %s", errConnectionLost, info.Event, info.Reason)
	}

	return fmt.Errorf("%w: %s", errConnectionLost, info.Event)
}

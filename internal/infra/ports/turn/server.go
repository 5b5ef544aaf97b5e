package turn

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/pion/logging"
	"github.com/pion/turn/v4"

	"github.com/qrave1/RoomCall/internal/application/config"
)

// Server - встроенный TURN relay для участников за симметричным NAT.
// Проверяет временные креды по общему секрету: username - unix время
// истечения, password - base64(HMAC-SHA1(secret, username)).
type Server struct {
	srv *turn.Server
}

// NewServer слушает UDP и TCP на одном порту
func NewServer(cfg config.TurnConfig, secret string) (*Server, error) {
	addr := fmt.Sprintf(":%d", cfg.Port)

	udpListener, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("udp listen: %w", err)
	}

	tcpListener, err := net.Listen("tcp4", addr)
	if err != nil {
		_ = udpListener.Close()
		return nil, fmt.Errorf("tcp listen: %w", err)
	}

	s, err := newServer(udpListener, tcpListener, cfg.PublicIP, "0.0.0.0", cfg.Realm, secret)
	if err != nil {
		_ = udpListener.Close()
		_ = tcpListener.Close()

		return nil, err
	}

	slog.Info(
		"TURN server started",
		slog.String("public_ip", cfg.PublicIP),
		slog.Int("port", cfg.Port),
		slog.String("realm", cfg.Realm),
	)

	return s, nil
}

func newServer(
	udpListener net.PacketConn,
	tcpListener net.Listener,
	publicIP, bindAddress, realm, secret string,
) (*Server, error) {
	relayIP := net.ParseIP(publicIP)
	if relayIP == nil {
		return nil, fmt.Errorf("invalid relay ip %q", publicIP)
	}

	if secret == "" {
		return nil, errors.New("turn secret is empty")
	}

	loggerFactory := logging.NewDefaultLoggerFactory()

	relayAddressGenerator := &turn.RelayAddressGeneratorStatic{
		RelayAddress: relayIP,
		Address:      bindAddress,
	}

	srv, err := turn.NewServer(turn.ServerConfig{
		Realm:         realm,
		AuthHandler:   turn.LongTermTURNRESTAuthHandler(secret, loggerFactory.NewLogger("turn-auth")),
		LoggerFactory: loggerFactory,
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn:            udpListener,
				RelayAddressGenerator: relayAddressGenerator,
			},
		},
		ListenerConfigs: []turn.ListenerConfig{
			{
				Listener:              tcpListener,
				RelayAddressGenerator: relayAddressGenerator,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new turn server: %w", err)
	}

	return &Server{srv: srv}, nil
}

func (s *Server) Close() error {
	return s.srv.Close()
}

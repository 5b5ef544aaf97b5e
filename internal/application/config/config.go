package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pion/webrtc/v4"
)

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"10000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:10000"`
	StaticDir  string `env:"STATIC_DIR" envDefault:"public"`

	// DefaultName подставляется, если участник не указал имя
	DefaultName string `env:"DEFAULT_NAME" envDefault:"Guest"`

	WS WebsocketConfig

	StunURL      string `env:"STUN_URL" envDefault:"stun:stun.l.google.com:19302"`
	CoturnServer CoturnConfig
	Turn         TurnConfig

	Postgres PostgresConfig

	// JournalBuffer - размер очереди журнала сессий
	JournalBuffer int `env:"JOURNAL_BUFFER" envDefault:"1024"`

	TurnUDPServer webrtc.ICEServer
	TurnTCPServer webrtc.ICEServer
}

type WebsocketConfig struct {
	ReadTimeout  time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
	PingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	SendQueue    int           `env:"WS_SEND_QUEUE" envDefault:"256"`
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"roomcall"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

// Enabled - журнал включается, только если задан адрес базы
func (p *PostgresConfig) Enabled() bool {
	return p.URL != "" || p.Host != ""
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

type CoturnConfig struct {
	Host string `env:"COTURN_HOST"`

	// Secret - нужен для генерации временных кредов для фронта
	Secret string `env:"COTURN_SECRET"`
}

func (c *CoturnConfig) Enabled() bool {
	return c.Host != "" && c.Secret != ""
}

// TurnConfig - встроенный TURN relay. Креды те же, что выдает /api/v1/ice (COTURN_SECRET).
type TurnConfig struct {
	Port     int    `env:"TURN_PORT" envDefault:"0"`
	PublicIP string `env:"TURN_PUBLIC_IP"`
	Realm    string `env:"TURN_REALM" envDefault:"roomcall"`
}

func (t *TurnConfig) Enabled() bool {
	return t.Port > 0 && t.PublicIP != ""
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if c.WS.SendQueue <= 0 {
		return nil, fmt.Errorf("WS_SEND_QUEUE must be positive, got %d", c.WS.SendQueue)
	}

	if c.Turn.Enabled() {
		if c.CoturnServer.Secret == "" {
			return nil, fmt.Errorf("TURN_PORT requires COTURN_SECRET")
		}

		// Встроенный relay анонсируется клиентам вместо внешнего coturn
		if c.CoturnServer.Host == "" {
			c.CoturnServer.Host = fmt.Sprintf("%s:%d", c.Turn.PublicIP, c.Turn.Port)
		}
	}

	if c.CoturnServer.Enabled() {
		c.TurnUDPServer = webrtc.ICEServer{
			URLs: []string{fmt.Sprintf("turn:%s?transport=udp", c.CoturnServer.Host)},
		}

		c.TurnTCPServer = webrtc.ICEServer{
			URLs: []string{fmt.Sprintf("turn:%s?transport=tcp", c.CoturnServer.Host)},
		}
	}

	return &c, nil
}

// ICEServers возвращает список серверов без временных кредов TURN
func (c *Config) ICEServers() []webrtc.ICEServer {
	servers := []webrtc.ICEServer{{URLs: []string{c.StunURL}}}

	if c.CoturnServer.Enabled() {
		servers = append(servers, c.TurnUDPServer, c.TurnTCPServer)
	}

	return servers
}

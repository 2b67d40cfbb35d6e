package core

import (
	"net"
	"strconv"
)

// DefaultPort is the standard MPD port.
const DefaultPort = 6600

// ServerProfile holds the parameters needed to reach one server.
type ServerProfile struct {
	Name        string `json:"name" toml:"name"`
	Host        string `json:"host" toml:"host"`
	Port        int    `json:"port" toml:"port"`
	Password    string `json:"-" toml:"password"`
	StreamURL   string `json:"stream_url,omitempty" toml:"stream_url"`
	AutoConnect bool   `json:"auto_connect" toml:"auto_connect"`
}

// Address returns host:port, using the default port when unset.
func (p ServerProfile) Address() string {
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

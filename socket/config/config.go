/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config describes connection-level configuration for TCP and UDP
// endpoints: network protocol, address, TLS material and buffer sizing, trimmed from nabbar/golib/socket/config down
// to the TCP/UDP surface this module covers (no unix/unixgram sockets).
package config

import (
	"errors"
	"net"

	"github.com/nabbar/netkit/certificates"
	"github.com/nabbar/netkit/network/protocol"
)

// ErrInvalidProtocol is returned when Network is not a protocol this package
// supports.
var ErrInvalidProtocol = errors.New("socket/config: invalid protocol")

// ErrInvalidTLSConfig is returned when TLS is enabled but the certificate
// material fails to validate.
var ErrInvalidTLSConfig = errors.New("socket/config: invalid TLS config")

// DefaultBufferSize is applied when BufferSize is left at zero.
const DefaultBufferSize = 4096

// TLSConfig toggles TLS on a Client or Server alongside the certificate
// material to use.
type TLSConfig struct {
	Enabled bool                  `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	Config  certificates.Config   `mapstructure:"config" json:"config" yaml:"config" toml:"config"`
}

// Client configures a dial-side connection.
type Client struct {
	Network    protocol.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" toml:"network"`
	Address    string                   `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	BufferSize int                      `mapstructure:"bufferSize" json:"bufferSize" yaml:"bufferSize" toml:"bufferSize"`
	TLS        TLSConfig                `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`
}

// Validate checks the network protocol is supported and the address
// resolves for that protocol.
func (c Client) Validate() error {
	if !c.Network.IsValid() {
		return ErrInvalidProtocol
	}

	if err := validateAddress(c.Network, c.Address); err != nil {
		return err
	}

	if c.TLS.Enabled {
		if e := c.TLS.Config.Validate(); e != nil {
			return ErrInvalidTLSConfig
		}
	}

	return nil
}

func (c Client) BufSize() int {
	if c.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return c.BufferSize
}

// Server configures an accept-side listener.
type Server struct {
	Network    protocol.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" toml:"network"`
	Address    string                   `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	BufferSize int                      `mapstructure:"bufferSize" json:"bufferSize" yaml:"bufferSize" toml:"bufferSize"`
	MaxClients int                      `mapstructure:"maxClients" json:"maxClients" yaml:"maxClients" toml:"maxClients"`
	TLS        TLSConfig                `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`
}

// Validate checks the network protocol is supported and the address
// resolves for that protocol.
func (s Server) Validate() error {
	if !s.Network.IsValid() {
		return ErrInvalidProtocol
	}

	if err := validateAddress(s.Network, s.Address); err != nil {
		return err
	}

	if s.TLS.Enabled {
		if e := s.TLS.Config.Validate(); e != nil {
			return ErrInvalidTLSConfig
		}
	}

	return nil
}

func (s Server) BufSize() int {
	if s.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return s.BufferSize
}

func validateAddress(n protocol.NetworkProtocol, address string) error {
	switch {
	case n.IsTCP():
		_, err := net.ResolveTCPAddr(n.String(), address)
		return err
	case n.IsUDP():
		_, err := net.ResolveUDPAddr(n.String(), address)
		return err
	default:
		return ErrInvalidProtocol
	}
}

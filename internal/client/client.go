// Package client implements the TCP client for the key-value server.
//
// A Client wraps one connection and issues exactly one request on it,
// mirroring the server's one-request-per-connection protocol.
package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/kvslab/kvs/internal/engine"
	"github.com/kvslab/kvs/internal/protocol"
)

// ErrServerError is returned when the server reports an opaque failure.
var ErrServerError = errors.New("server error")

// DefaultDialTimeout bounds connection establishment.
const DefaultDialTimeout = 10 * time.Second

// Client is a single-connection client.
type Client struct {
	conn net.Conn
}

// Dial connects to the server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, DefaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Get fetches the value for key. The bool reports presence.
func (c *Client) Get(key string) (string, bool, error) {
	resp, err := c.roundTrip(protocol.GetRequest(key))
	if err != nil {
		return "", false, err
	}

	switch resp.Kind {
	case protocol.RespOk:
		if resp.Value == nil {
			return "", false, nil
		}
		return *resp.Value, true, nil
	case protocol.RespKeyNotFound:
		return "", false, engine.ErrKeyNotFound
	case protocol.RespErr:
		return "", false, ErrServerError
	default:
		return "", false, fmt.Errorf("%w: unexpected response to Get", protocol.ErrProtocol)
	}
}

// Set stores the binding.
func (c *Client) Set(key, value string) error {
	resp, err := c.roundTrip(protocol.SetRequest(key, value))
	if err != nil {
		return err
	}

	switch resp.Kind {
	case protocol.RespSuccess:
		return nil
	case protocol.RespErr:
		return ErrServerError
	default:
		return fmt.Errorf("%w: unexpected response to Set", protocol.ErrProtocol)
	}
}

// Remove erases the binding. Removing an absent key fails with
// engine.ErrKeyNotFound.
func (c *Client) Remove(key string) error {
	resp, err := c.roundTrip(protocol.RmRequest(key))
	if err != nil {
		return err
	}

	switch resp.Kind {
	case protocol.RespSuccess:
		return nil
	case protocol.RespKeyNotFound:
		return engine.ErrKeyNotFound
	case protocol.RespErr:
		return ErrServerError
	default:
		return fmt.Errorf("%w: unexpected response to Rm", protocol.ErrProtocol)
	}
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	if err := protocol.WriteRequest(c.conn, req); err != nil {
		return protocol.Response{}, err
	}
	return protocol.ReadResponse(c.conn)
}

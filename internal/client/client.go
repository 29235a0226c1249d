// Package client implements the line protocol from the client side: the
// handshake, record framing and a blocking receive. It backs the admin
// terminal front-end and the end-to-end tests.
package client

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/udisondev/chessd/internal/protocol"
)

// Client is one authenticated connection to the server.
type Client struct {
	Name string

	conn   net.Conn
	framer *protocol.Framer
}

// Dial connects and performs the user handshake: secret, name, password.
// The server answers with "WELCOME <name>" which stays queued for the
// caller to read.
func Dial(hostname, port, authentication, name, password string) (*Client, error) {
	c, err := connect(hostname, port, authentication)
	if err != nil {
		return nil, err
	}
	c.Name = name

	if err := c.Send(protocol.TagName + " " + name); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.Send(password); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// DialAdmin connects with the admin secret and requests the initial
// user listing.
func DialAdmin(hostname, port, adminAuthentication string) (*Client, error) {
	c, err := connect(hostname, port, adminAuthentication)
	if err != nil {
		return nil, err
	}
	c.Name = "admin"

	if err := c.Send("get"); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func connect(hostname, port, authentication string) (*Client, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(hostname, port))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s:%s: %w", hostname, port, err)
	}
	c := &Client{conn: conn, framer: protocol.NewFramer(conn)}
	if err := c.Send(authentication); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Send writes one record.
func (c *Client) Send(msg string) error {
	return protocol.WriteRecord(c.conn, msg)
}

// NextMessage blocks until a complete record arrives or the timeout
// elapses. A zero timeout blocks indefinitely.
func (c *Client) NextMessage(timeout time.Duration) (string, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}
	for {
		msg, err := c.framer.Next()
		if err == nil {
			return msg, nil
		}
		if errors.Is(err, protocol.ErrNoRecord) || errors.Is(err, protocol.ErrIncomplete) {
			continue
		}
		if os.IsTimeout(err) {
			return "", fmt.Errorf("waiting for record: %w", err)
		}
		return "", err
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const (
	dialTimeout = 2 * time.Second
	callTimeout = 15 * time.Second
)

// Client talks to a running framewatch process over its control socket.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the control socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close releases the connection. The codec owns the socket.
func (c *Client) Close() error {
	if c == nil || c.rpc == nil {
		return nil
	}
	return c.rpc.Close()
}

// Stop asks the active run to drain and stop.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status returns the process and pipeline snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// call invokes method and gives up after callTimeout.
func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	pending := c.rpc.Go(ServiceName+"."+method, req, &resp, make(chan *rpc.Call, 1))
	select {
	case done := <-pending.Done:
		if done.Error != nil {
			return nil, done.Error
		}
		return &resp, nil
	case <-time.After(callTimeout):
		return nil, fmt.Errorf("%s: no reply within %s", method, callTimeout)
	}
}

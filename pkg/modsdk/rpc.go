// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package modsdk

import (
	"errors"
	"net/rpc"

	hashiplug "github.com/hashicorp/go-plugin"
)

// Wire types. Everything here must stay gob-encodable.

// CreateRequest carries the module configuration and the broker stream id of
// the host's publisher service.
type CreateRequest struct {
	Config            []byte
	PublisherBrokerID uint32
}

// ReceiveRequest carries one delivered message.
type ReceiveRequest struct {
	Msg Message
}

// InfoReply describes the module to the host before Create.
type InfoReply struct {
	HasStart   bool
	APIVersion string
}

// PublishRequest is a module-originated publish.
type PublishRequest struct {
	Payload    []byte
	Properties map[string]string
}

// ModulePlugin implements go-plugin's Plugin interface over net/rpc. The host
// dispenses it to obtain a *ModuleClient; the module process serves it around
// the author's Handler.
type ModulePlugin struct {
	// Impl is the module implementation. Set on the module side only.
	Impl Handler
}

// Server returns the RPC server for the module side.
func (p *ModulePlugin) Server(broker *hashiplug.MuxBroker) (interface{}, error) {
	if p.Impl == nil {
		return nil, errors.New("modsdk: module implementation is nil")
	}
	return &moduleServer{impl: p.Impl, broker: broker}, nil
}

// Client returns the host-side client wrapper.
func (p *ModulePlugin) Client(broker *hashiplug.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &ModuleClient{client: c, broker: broker}, nil
}

// moduleServer is the module-process side of the RPC contract.
type moduleServer struct {
	impl   Handler
	broker *hashiplug.MuxBroker
	pub    *rpc.Client
}

// Describe reports the module's capabilities to the host.
func (s *moduleServer) Describe(_ struct{}, reply *InfoReply) error {
	_, hasStart := s.impl.(StartHandler)
	*reply = InfoReply{HasStart: hasStart, APIVersion: Handshake.MagicCookieValue}
	return nil
}

// Create dials back to the host's publisher service and initializes the
// module.
func (s *moduleServer) Create(req CreateRequest, _ *struct{}) error {
	conn, err := s.broker.Dial(req.PublisherBrokerID)
	if err != nil {
		return err
	}
	s.pub = rpc.NewClient(conn)
	return s.impl.Create(req.Config, &remotePublisher{client: s.pub})
}

// Receive hands one message to the module.
func (s *moduleServer) Receive(req ReceiveRequest, _ *struct{}) error {
	return s.impl.Receive(req.Msg)
}

// Start runs the module's background pump. Blocks until the pump returns.
func (s *moduleServer) Start(_ struct{}, _ *struct{}) error {
	starter, ok := s.impl.(StartHandler)
	if !ok {
		return nil
	}
	return starter.Start()
}

// Destroy tears the module down and releases the publisher connection.
func (s *moduleServer) Destroy(_ struct{}, _ *struct{}) error {
	err := s.impl.Destroy()
	if s.pub != nil {
		_ = s.pub.Close()
		s.pub = nil
	}
	return err
}

// remotePublisher forwards module publishes to the host over the broker
// stream.
type remotePublisher struct {
	client *rpc.Client
}

func (p *remotePublisher) Publish(payload []byte, properties map[string]string) error {
	return p.client.Call("Plugin.Publish", PublishRequest{
		Payload:    payload,
		Properties: properties,
	}, new(struct{}))
}

// PublishFunc is the host-side sink for module-originated publishes.
type PublishFunc func(payload []byte, properties map[string]string) error

// PublisherServer serves the host's publish capability over a broker stream.
// go-plugin registers it under the service name "Plugin".
type PublisherServer struct {
	Impl PublishFunc
}

// Publish forwards a module publish into the host.
func (s *PublisherServer) Publish(req PublishRequest, _ *struct{}) error {
	return s.Impl(req.Payload, req.Properties)
}

// ModuleController is the host-side view of a running module process.
// *ModuleClient implements it; hosts should depend on this interface so the
// transport can be faked in tests.
type ModuleController interface {
	Describe() (InfoReply, error)
	Create(config []byte, pub PublishFunc) error
	Receive(msg Message) error
	Start() error
	Destroy() error
}

// Compile-time interface check.
var _ ModuleController = (*ModuleClient)(nil)

// ModuleClient is the host-side handle to a running module process.
type ModuleClient struct {
	client *rpc.Client
	broker *hashiplug.MuxBroker
}

// Describe queries the module's capabilities.
func (c *ModuleClient) Describe() (InfoReply, error) {
	var reply InfoReply
	err := c.client.Call("Plugin.Describe", struct{}{}, &reply)
	return reply, err
}

// Create wires the publish sink through the broker and initializes the
// module with its configuration.
func (c *ModuleClient) Create(config []byte, pub PublishFunc) error {
	id := c.broker.NextId()
	go c.broker.AcceptAndServe(id, &PublisherServer{Impl: pub})
	return c.client.Call("Plugin.Create", CreateRequest{
		Config:            config,
		PublisherBrokerID: id,
	}, new(struct{}))
}

// Receive delivers one message to the module.
func (c *ModuleClient) Receive(msg Message) error {
	return c.client.Call("Plugin.Receive", ReceiveRequest{Msg: msg}, new(struct{}))
}

// Start invokes the module's background pump. Blocks until it returns, so
// the host calls this from the module's start goroutine.
func (c *ModuleClient) Start() error {
	return c.client.Call("Plugin.Start", struct{}{}, new(struct{}))
}

// Destroy tears the module down.
func (c *ModuleClient) Destroy() error {
	return c.client.Call("Plugin.Destroy", struct{}{}, new(struct{}))
}

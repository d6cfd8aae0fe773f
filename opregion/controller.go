package opregion

import (
	"context"
	"encoding/binary"
	"sync/atomic"

	"amlvm/engine"
)

// nonBlockingChan is a bounded channel that reports back-pressure instead of
// blocking the sender, adapted from the teacher's device-bus primitive in
// vm/devices.go (there used to fan interrupt-style requests out to hardware
// device goroutines; here it gates requests into Controller's worker
// goroutine).
type nonBlockingChan[T any] struct {
	ch       chan T
	count    atomic.Int32
	capacity int32
}

func newNonBlockingChan[T any](capacity int32) *nonBlockingChan[T] {
	return &nonBlockingChan[T]{ch: make(chan T, capacity), capacity: capacity}
}

func (nc *nonBlockingChan[T]) send(v T) bool {
	if nc.count.Add(1) > nc.capacity {
		nc.count.Add(-1)
		return false
	}
	nc.ch <- v
	return true
}

func (nc *nonBlockingChan[T]) receive() (T, bool) {
	v, ok := <-nc.ch
	if ok {
		nc.count.Add(-1)
	}
	return v, ok
}

type controllerRequest struct {
	region string
	offset uint64
	width  uint64
	write  bool
	value  uint64
	reply  chan controllerResponse
}

type controllerResponse struct {
	value uint64
	err   error
}

// Controller is an engine.OpRegion modeling ACPI's SystemIO/EmbeddedControl
// address spaces as a single-worker hardware bus: every Read/Write is
// serialized through a request channel to one background goroutine, the way
// the teacher's systemTimer and consoleIO devices each own a single
// goroutine that is the only thing allowed to touch the underlying
// resource (vm/devices.go's "this should be the only routine that accesses
// stdin" invariant, generalized from stdin to an arbitrary backing store).
type Controller struct {
	backing map[string][]byte
	reqs    *nonBlockingChan[controllerRequest]
	apply   func(offset uint64, width uint64, write bool, value uint64, buf []byte) (uint64, []byte)
}

// NewController starts the worker goroutine. The backing store starts empty
// and grows lazily per region, same discipline as Memory.
func NewController() *Controller {
	c := &Controller{
		backing: make(map[string][]byte),
		reqs:    newNonBlockingChan[controllerRequest](64),
	}
	go c.run()
	return c
}

func (c *Controller) run() {
	for {
		req, ok := c.reqs.receive()
		if !ok {
			return
		}
		buf := c.backing[req.region]
		end := int(req.offset + req.width)
		if len(buf) < end {
			grown := make([]byte, end)
			copy(grown, buf)
			buf = grown
			c.backing[req.region] = buf
		}

		var raw [8]byte
		n := int(req.width)
		if req.write {
			binary.LittleEndian.PutUint64(raw[:], req.value)
			copy(buf[req.offset:end], raw[:n])
			req.reply <- controllerResponse{}
			continue
		}
		copy(raw[:n], buf[req.offset:end])
		req.reply <- controllerResponse{value: binary.LittleEndian.Uint64(raw[:])}
	}
}

// Close shuts the worker goroutine down. Not part of engine.OpRegion; a host
// calls it during teardown.
func (c *Controller) Close() {
	close(c.reqs.ch)
}

func (c *Controller) Read(ctx context.Context, node *engine.NamedNode) (engine.Object, error) {
	reply := make(chan controllerResponse, 1)
	req := controllerRequest{
		region: node.FieldOpRegion,
		offset: node.FieldOffset,
		width:  uint64(widthBytes(node.FieldWidth)),
		reply:  reply,
	}
	if !c.reqs.send(req) {
		return engine.Object{}, engine.ErrOpRegionIO
	}
	select {
	case resp := <-reply:
		if resp.err != nil {
			return engine.Object{}, resp.err
		}
		return engine.IntegerObject(resp.value), nil
	case <-ctx.Done():
		return engine.Object{}, ctx.Err()
	}
}

func (c *Controller) Write(ctx context.Context, node *engine.NamedNode, val engine.Object) error {
	v, err := val.AsInteger()
	if err != nil {
		return err
	}
	reply := make(chan controllerResponse, 1)
	req := controllerRequest{
		region: node.FieldOpRegion,
		offset: node.FieldOffset,
		width:  uint64(widthBytes(node.FieldWidth)),
		write:  true,
		value:  v,
		reply:  reply,
	}
	if !c.reqs.send(req) {
		return engine.ErrOpRegionIO
	}
	select {
	case resp := <-reply:
		return resp.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

package grpc

import (
	"context"

	"github.com/potlucklabs/potluck/internal/peer"
	"google.golang.org/grpc"
)

const deliverMethod = "/potluck.v1.Channel/Deliver"

// Envelope frames one published payload on the wire. Addr is the sender's
// advertised listen address, which lets receivers learn peers without a
// separate discovery protocol.
type Envelope struct {
	Sender  peer.ID `json:"sender"`
	Addr    string  `json:"addr"`
	Payload []byte  `json:"payload"`
}

// Ack is the empty reply to a delivery.
type Ack struct{}

type channelServer interface {
	Deliver(ctx context.Context, env *Envelope) (*Ack, error)
}

func deliverHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(channelServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: deliverMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(channelServer).Deliver(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "potluck.v1.Channel",
	HandlerType: (*channelServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: deliverHandler},
	},
}

package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
)

// ServiceName is the fully qualified gRPC service. Messages are protobuf well-known
// types: commands, results and snapshots travel as google.protobuf.Struct holding their
// JSON form.
const ServiceName = "farmsim.SimulationControl"

type SimulationControlServer interface {
	Start(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Stop(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	SetTemperature(context.Context, *wrapperspb.DoubleValue) (*emptypb.Empty, error)
	Apply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func unaryMethod[In any, Out any](name string, call func(SimulationControlServer, context.Context, *In) (*Out, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(In)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(SimulationControlServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*In))
			})
		},
	}
}

var SimulationControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulationControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Start", SimulationControlServer.Start),
		unaryMethod("Stop", SimulationControlServer.Stop),
		unaryMethod("SetTemperature", SimulationControlServer.SetTemperature),
		unaryMethod("Apply", SimulationControlServer.Apply),
		unaryMethod("Snapshot", SimulationControlServer.Snapshot),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "farmsim/control.proto",
}

func RegisterSimulationControlServer(s grpc.ServiceRegistrar, srv SimulationControlServer) {
	s.RegisterService(&SimulationControlServiceDesc, srv)
}

// LogUnary logs every call with its duration and status code.
func LogUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.Printf("control: grpc %s [%s] %s", info.FullMethod, time.Since(start).Round(time.Microsecond), status.Code(err))
	return resp, err
}

// GRPCServer serves SimulationControl on top of a Controller.
type GRPCServer struct {
	ctrl *Controller
}

var _ SimulationControlServer = (*GRPCServer)(nil)

func NewGRPCServer(ctrl *Controller) *GRPCServer { return &GRPCServer{ctrl: ctrl} }

func (s *GRPCServer) Start(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.ctrl.Engine().Start()), nil
}

func (s *GRPCServer) Stop(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.ctrl.Engine().Stop()), nil
}

func (s *GRPCServer) SetTemperature(_ context.Context, in *wrapperspb.DoubleValue) (*emptypb.Empty, error) {
	if _, err := s.ctrl.Apply(messages.Command{Type: messages.CmdSetTemperature, Value: in.GetValue()}); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) Apply(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var cmd messages.Command
	if err := fromStruct(in, &cmd); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid command: %v", err)
	}
	res, err := s.ctrl.Apply(cmd)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return toStruct(res)
}

func (s *GRPCServer) Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.ctrl.Snapshot())
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("empty message")
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Client is the caller side of SimulationControl.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) method(name string) string { return "/" + ServiceName + "/" + name }

// Start reports whether the call changed the clock state.
func (c *Client) Start(ctx context.Context) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, c.method("Start"), &emptypb.Empty{}, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) Stop(ctx context.Context) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, c.method("Stop"), &emptypb.Empty{}, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) SetTemperature(ctx context.Context, celsius float64) error {
	return c.cc.Invoke(ctx, c.method("SetTemperature"), wrapperspb.Double(celsius), new(emptypb.Empty))
}

func (c *Client) Apply(ctx context.Context, cmd messages.Command) (messages.CommandResult, error) {
	var res messages.CommandResult
	in, err := toStruct(cmd)
	if err != nil {
		return res, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, c.method("Apply"), in, out); err != nil {
		return res, err
	}
	err = fromStruct(out, &res)
	return res, err
}

func (c *Client) Snapshot(ctx context.Context) (messages.Snapshot, error) {
	var snap messages.Snapshot
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, c.method("Snapshot"), &emptypb.Empty{}, out); err != nil {
		return snap, err
	}
	err := fromStruct(out, &snap)
	return snap, err
}

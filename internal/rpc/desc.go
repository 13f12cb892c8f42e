package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type handlerFunc func(*Server, context.Context, *structpb.Struct) (*structpb.Struct, error)

var methods = map[string]handlerFunc{
	"Execute":         (*Server).execute,
	"RunPipeline":     (*Server).runPipeline,
	"RunRecipe":       (*Server).runRecipe,
	"Detect":          (*Server).detect,
	"ListOperations":  (*Server).listOperations,
	"GenerateKeyPair": (*Server).generateKeyPair,
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods:     methodDescs(),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "cipherlab/v1/cipher.proto",
}

func methodDescs() []grpc.MethodDesc {
	names := []string{"Execute", "RunPipeline", "RunRecipe", "Detect", "ListOperations", "GenerateKeyPair"}
	descs := make([]grpc.MethodDesc, 0, len(names))
	for _, name := range names {
		descs = append(descs, grpc.MethodDesc{MethodName: name, Handler: unaryHandler(name)})
	}
	return descs
}

func unaryHandler(name string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := func(ctx context.Context, req any) (any, error) {
			return methods[name](srv.(*Server), ctx, req.(*structpb.Struct))
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
		return interceptor(ctx, in, info, call)
	}
}

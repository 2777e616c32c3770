// Package transport provides the default gRPC-backed paxos.Network
// implementation, grounded on the teacher's own transport_grpc.go: a
// single Transport service multiplexing every message kind, plus a
// client-streaming RPC reserved for large CatchUpSnapshot bodies so one
// oversized transfer never blocks the unary Deliver path other replicas
// depend on for liveness.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lattica/paxos"
	"github.com/lattica/paxos/pb"
)

// snapshotStreamThreshold is the CatchUpSnapshot body size above which
// GRPCTransport prefers StreamSnapshot over the unary Deliver RPC.
const snapshotStreamThreshold = 256 * 1024

const snapshotChunkSize = 64 * 1024

// Peer describes a remote replica's dial target.
type Peer struct {
	ID       int
	Endpoint string
}

// GRPCTransport is the default paxos.Network implementation.
type GRPCTransport struct {
	pb.UnimplementedTransportServer

	logger *zap.SugaredLogger
	selfID int

	mu        sync.RWMutex
	conns     map[int]*grpc.ClientConn
	clients   map[int]pb.TransportClient
	handlers  map[paxos.Kind][]paxos.MessageHandler
	listeners sync.Mutex

	server   *grpc.Server
	listener net.Listener
}

// NewGRPCTransport dials every peer and prepares (without yet starting) a
// local Transport server for selfID.
func NewGRPCTransport(selfID int, peers []Peer, logger *zap.SugaredLogger) (*GRPCTransport, error) {
	t := &GRPCTransport{
		logger:   logger,
		selfID:   selfID,
		conns:    make(map[int]*grpc.ClientConn),
		clients:  make(map[int]pb.TransportClient),
		handlers: make(map[paxos.Kind][]paxos.MessageHandler),
	}
	for _, p := range peers {
		if p.ID == selfID {
			continue
		}
		conn, err := grpc.Dial(p.Endpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype("proto")),
		)
		if err != nil {
			return nil, fmt.Errorf("paxos/transport: dial peer %d: %w", p.ID, err)
		}
		t.conns[p.ID] = conn
		t.clients[p.ID] = pb.NewTransportClient(conn)
	}
	return t, nil
}

// Serve starts the local Transport gRPC server on listener; it blocks
// until Close is called, mirroring the teacher's trans.Serve() contract.
func (t *GRPCTransport) Serve(listener net.Listener) error {
	t.listener = listener
	t.server = grpc.NewServer()
	pb.RegisterTransportServer(t.server, t)
	return t.server.Serve(listener)
}

// Close tears down the local server and every outbound connection.
func (t *GRPCTransport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	var firstErr error
	for _, conn := range t.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// --- paxos.Network ---

func (t *GRPCTransport) SendTo(dest int, msg *paxos.Message) error {
	client, ok := t.clients[dest]
	if !ok {
		return nil // unknown peer: TransientNetwork, caller relies on retransmission
	}
	encoded := paxos.Encode(msg)
	if msg.Kind == paxos.KindCatchUpSnapshot && len(encoded) > snapshotStreamThreshold {
		return t.sendSnapshotStream(dest, client, encoded)
	}
	_, err := client.Deliver(context.Background(), &pb.Envelope{Payload: encoded, Sender: int32(t.selfID)})
	if err != nil {
		t.logger.Debugw("deliver failed, relying on retransmission", "dest", dest, "kind", msg.Kind.String(), "error", err)
	}
	return nil // TransientNetwork: always dropped locally, never surfaced
}

func (t *GRPCTransport) sendSnapshotStream(dest int, client pb.TransportClient, encoded []byte) error {
	stream, err := client.StreamSnapshot(context.Background())
	if err != nil {
		t.logger.Debugw("open snapshot stream failed", "dest", dest, "error", err)
		return nil
	}
	for off := 0; off < len(encoded); off += snapshotChunkSize {
		end := off + snapshotChunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		if err := stream.Send(&pb.SnapshotChunk{Data: encoded[off:end]}); err != nil {
			t.logger.Debugw("snapshot chunk send failed", "dest", dest, "error", err)
			return nil
		}
	}
	if _, err := stream.CloseAndRecv(); err != nil {
		t.logger.Debugw("snapshot stream close failed", "dest", dest, "error", err)
	}
	return nil
}

func (t *GRPCTransport) SendToAll(msg *paxos.Message) error {
	for dest := range t.clients {
		_ = t.SendTo(dest, msg)
	}
	return nil
}

func (t *GRPCTransport) AddMessageListener(kind paxos.Kind, handler paxos.MessageHandler) {
	t.listeners.Lock()
	defer t.listeners.Unlock()
	t.handlers[kind] = append(t.handlers[kind], handler)
}

func (t *GRPCTransport) dispatch(sender int, msg *paxos.Message) {
	t.listeners.Lock()
	handlers := append([]paxos.MessageHandler(nil), t.handlers[msg.Kind]...)
	t.listeners.Unlock()
	for _, h := range handlers {
		h(sender, msg)
	}
}

// --- pb.TransportServer ---

func (t *GRPCTransport) Deliver(ctx context.Context, env *pb.Envelope) (*pb.Ack, error) {
	msg, err := paxos.Decode(env.Payload)
	if err != nil {
		t.logger.Debugw("malformed message dropped", "sender", env.Sender, "error", err)
		return &pb.Ack{Ok: false}, nil // TransientNetwork: dropped, not surfaced as an RPC error
	}
	t.dispatch(int(env.Sender), msg)
	return &pb.Ack{Ok: true}, nil
}

func (t *GRPCTransport) StreamSnapshot(stream pb.Transport_StreamSnapshotServer) error {
	var buf []byte
	sender := -1 // snapshot chunks carry no sender id; handlers must not depend on it
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		buf = append(buf, chunk.Data...)
	}
	msg, err := paxos.Decode(buf)
	if err != nil {
		t.logger.Debugw("malformed snapshot dropped", "error", err)
		return stream.SendAndClose(&pb.Ack{Ok: false})
	}
	t.dispatch(sender, msg)
	return stream.SendAndClose(&pb.Ack{Ok: true})
}

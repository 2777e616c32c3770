// Command kv runs one replica of a toy replicated key-value store on top
// of the paxos core, exercising every Service verb end to end (spec §6).
// It is the example adapter the module map promises: wire transport,
// configuration loading, and CLI entry points all live here, deliberately
// outside the CORE package (spec §1 scope).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lattica/paxos"
	"github.com/lattica/paxos/transport"
)

func main() {
	var (
		id       = flag.Int("id", 0, "replica id, 0..n-1")
		peersArg = flag.String("peers", "", "comma-separated id=host:port list for every replica, including self")
		listen   = flag.String("listen", "127.0.0.1:9000", "local gRPC listen address")
		dataDir  = flag.String("data", "./data", "stable storage directory")
		debug    = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	peers, err := parsePeers(*peersArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kv:", err)
		os.Exit(1)
	}

	logger := newZapLogger(*debug)
	defer logger.Sync()

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		logger.Fatalw("create data dir", "error", err)
	}
	storage, err := paxos.OpenBoltStorage(*dataDir + "/replica-" + strconv.Itoa(*id) + ".db")
	if err != nil {
		logger.Fatalw("open stable storage", "error", err)
	}

	transportNet, err := transport.NewGRPCTransport(*id, peers, logger)
	if err != nil {
		logger.Fatalw("dial peers", "error", err)
	}

	cfg := paxos.NewConfig(*id, len(peers))
	service := NewStateMachine()
	engine, err := paxos.NewEngine(cfg, service, transportNet, storage, logger)
	if err != nil {
		logger.Fatalw("construct engine", "error", err)
	}

	listener, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Fatalw("listen", "error", err)
	}
	go func() {
		if err := transportNet.Serve(listener); err != nil {
			logger.Warnw("transport serve stopped", "error", err)
		}
	}()

	if err := engine.Start(); err != nil {
		logger.Fatalw("start engine", "error", err)
	}

	go runREPL(engine)

	<-terminalSignalCh()
	logger.Infow("shutting down")
	_ = engine.Stop()
	_ = transportNet.Close()
}

func parsePeers(arg string) ([]transport.Peer, error) {
	var peers []transport.Peer
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed peer entry %q, want id=host:port", part)
		}
		id, err := strconv.Atoi(kv[0])
		if err != nil {
			return nil, fmt.Errorf("malformed peer id in %q: %w", part, err)
		}
		peers = append(peers, transport.Peer{ID: id, Endpoint: kv[1]})
	}
	if len(peers) == 0 {
		return nil, fmt.Errorf("at least one peer (including self) is required")
	}
	return peers, nil
}

func newZapLogger(debug bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level.SetLevel(zap.DebugLevel)
		cfg.Development = true
	}
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

// terminalSignalCh returns a channel that fires once a termination signal
// arrives, grounded on the teacher's own signal.go helper of the same
// name (kept inline here rather than in the core package, since process
// signal handling is a CLI entry-point concern spec §1 places outside the
// replication CORE).
func terminalSignalCh() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	return ch
}

// runREPL offers a minimal stdin interface for exercising the replica
// manually: "set key value", "unset key", "view", "quit".
func runREPL(engine *paxos.Engine) {
	clientID := uint64(time.Now().UnixNano())
	var seq uint64
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "set":
			if len(fields) != 3 {
				fmt.Println("usage: set <key> <value>")
				continue
			}
			submit(engine, clientID, &seq, Command{Type: CommandSet, Key: fields[1], Value: []byte(fields[2])})
		case "unset":
			if len(fields) != 2 {
				fmt.Println("usage: unset <key>")
				continue
			}
			submit(engine, clientID, &seq, Command{Type: CommandUnset, Key: fields[1]})
		case "view":
			fmt.Println("view:", engine.View(), "leader:", engine.IsLeader())
		case "quit":
			return
		default:
			fmt.Println("commands: set <k> <v> | unset <k> | view | quit")
		}
	}
}

func submit(engine *paxos.Engine, clientID uint64, seq *uint64, cmd Command) {
	*seq++
	req := paxos.Request{
		ID:      paxos.RequestID{ClientID: clientID, SequenceNo: *seq},
		Payload: encodeCommand(cmd),
	}
	future, err := engine.Propose(req)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	reply, err := future.Result()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(string(reply))
}

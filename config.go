package paxos

import "time"

// Compile-time protocol constants (spec §4, §6). These are not meant to be
// externally tunable the way Config's fields are; they express the timing
// discipline the Paxos core itself depends on for liveness.
const (
	RetransmitTimeout = 1000 * time.Millisecond

	SendTimeout      = 1000 * time.Millisecond
	SuspectLeader    = 2000 * time.Millisecond
	CatchUpMinResend = 50 * time.Millisecond
	CatchUpMaxResend = 2000 * time.Millisecond

	SnapshotMinLogSize        = 64 * 1024
	SnapshotAskRatio          = 1.5
	SnapshotForceRatio        = 3.0
	firstSnapshotSizeEstimate = 1024
)

// Config carries every externally tunable knob listed in spec §6, plus the
// replica identity needed to compute Leader(v) = v mod N. It is built once
// with options at Engine construction and never mutated afterward — no
// process-global configuration exists anywhere in this package.
type Config struct {
	LocalID int
	N       int

	WindowSize       int
	MaxUDPPacketSize int
	BatchSize        int
	BusyThreshold    int

	RetransmitTimeout time.Duration
	SendTimeout       time.Duration
	SuspectLeader     time.Duration
	CatchUpMinResend  time.Duration
	CatchUpMaxResend  time.Duration

	SnapshotMinLogSize int
	SnapshotAskRatio   float64
	SnapshotForceRatio float64
}

// Option mutates a Config during construction. Mirrors the teacher's
// ServerOption/applyServerOpts pattern.
type Option func(*Config)

func defaultConfig(localID, n int) *Config {
	return &Config{
		LocalID:          localID,
		N:                n,
		WindowSize:       1,
		MaxUDPPacketSize: 1472,
		BatchSize:        1472,
		BusyThreshold:    10240,

		RetransmitTimeout: RetransmitTimeout,
		SendTimeout:       SendTimeout,
		SuspectLeader:     SuspectLeader,
		CatchUpMinResend:  CatchUpMinResend,
		CatchUpMaxResend:  CatchUpMaxResend,

		SnapshotMinLogSize: SnapshotMinLogSize,
		SnapshotAskRatio:   SnapshotAskRatio,
		SnapshotForceRatio: SnapshotForceRatio,
	}
}

func applyOptions(cfg *Config, opts ...Option) *Config {
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// NewConfig builds a Config for a replica identified by localID within an
// N-member group, applying any Options over the spec §6 defaults.
func NewConfig(localID, n int, opts ...Option) *Config {
	return applyOptions(defaultConfig(localID, n), opts...)
}

// WithWindowSize overrides the default proposal window size.
func WithWindowSize(n int) Option {
	return func(c *Config) { c.WindowSize = n }
}

// WithBatchSize overrides the byte budget of a single Propose batch. A batch
// whose first request alone exceeds it holds just that request.
func WithBatchSize(n int) Option {
	return func(c *Config) { c.BatchSize = n }
}

// WithBusyThreshold overrides the dispatcher queue depth above which new
// client proposals are refused with Busy (LocalOverload, spec §7).
func WithBusyThreshold(n int) Option {
	return func(c *Config) { c.BusyThreshold = n }
}

// WithRetransmitTimeout overrides the Retransmitter's resend period.
func WithRetransmitTimeout(d time.Duration) Option {
	return func(c *Config) { c.RetransmitTimeout = d }
}

// Leader returns the replica id that owns view v.
func (c *Config) Leader(view int32) int {
	return int(view) % c.N
}

// IsLocalLeader reports whether this replica owns view v.
func (c *Config) IsLocalLeader(view int32) bool {
	return c.Leader(view) == c.LocalID
}

// nextViewForSelf returns the smallest v' > view with v' mod N == LocalID.
// This resolves the §9 open question about the original's `view++`
// off-by-one: we never preserve that arithmetic.
func (c *Config) nextViewForSelf(view int32) int32 {
	v := view + 1
	for int(v)%c.N != c.LocalID {
		v++
	}
	return v
}

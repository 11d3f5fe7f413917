package controller

import (
	"time"

	"forged/internal/engine"
	"forged/internal/profile"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultQueueTimeout      = 30 * time.Second
	defaultSweepInterval     = 1 * time.Second
	defaultTerminalRetention = 5 * time.Minute
)

// Config encapsulates all tunables for Controller construction. Everything
// here is captured once; the controller never reads ambient state.
type Config struct {
	Profile profile.Profile
	Engine  engine.Engine
	// Publisher receives lifecycle events; nil drops them.
	Publisher EventPublisher
	// QueueTimeout is how long a queued request may wait before expiring.
	QueueTimeout time.Duration
	// SweepInterval is the cadence of the background expiry/prune pass.
	SweepInterval time.Duration
	// TerminalRetention is how long completed/rejected/evicted records stay
	// visible before pruning.
	TerminalRetention time.Duration
}

// New constructs a Controller for the active profile. The scheduler policy
// strategy is selected here, once; the admission path never branches on the
// policy name.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}
	pol, err := PolicyFor(cfg.Profile.SchedulerPolicy)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		profile:   cfg.Profile,
		policy:    pol,
		reg:       NewRegistry(),
		queue:     newWaitQueue(cfg.Profile.MaxQueueDepth),
		eng:       cfg.Engine,
		publisher: cfg.Publisher,
		now:       time.Now,
		startTime: time.Now(),
		stopCh:    make(chan struct{}),
	}
	if c.eng == nil {
		c.eng = engine.NewSimulated()
	}
	if c.publisher == nil {
		c.publisher = noopPublisher{}
	}
	c.queueTimeout = cfg.QueueTimeout
	if c.queueTimeout <= 0 {
		c.queueTimeout = defaultQueueTimeout
	}
	c.sweepInterval = cfg.SweepInterval
	if c.sweepInterval <= 0 {
		c.sweepInterval = defaultSweepInterval
	}
	c.retention = cfg.TerminalRetention
	if c.retention <= 0 {
		c.retention = defaultTerminalRetention
	}
	targetTTFTGauge.Set(cfg.Profile.TargetTTFTMs)
	targetTPSGauge.Set(cfg.Profile.TargetTPS)
	return c, nil
}

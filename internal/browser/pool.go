package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var ErrPoolClosed = errors.New("browser pool is closed")

// Instance is one managed browser process plus the lifecycle counters the
// pool recycles on.
type Instance struct {
	Browser   *rod.Browser
	createdAt time.Time
	lastUsed  time.Time
	uses      int
}

// PoolConfig caps live browsers and bounds how long any single process may
// serve before it is replaced. Long-lived Chromium processes leak memory,
// so instances are disposable.
type PoolConfig struct {
	Size                int
	WarmInstances       int
	MaxAge              time.Duration
	MaxIdle             time.Duration
	MaxUses             int
	HealthCheckInterval time.Duration
}

func PoolConfigFromSettings() PoolConfig {
	cfg := PoolConfig{
		Size:                viper.GetInt("scan.browser.pool_size"),
		WarmInstances:       viper.GetInt("scan.browser.warm_instances"),
		MaxAge:              time.Duration(viper.GetInt("scan.browser.max_age")) * time.Second,
		MaxIdle:             time.Duration(viper.GetInt("scan.browser.max_idle")) * time.Second,
		MaxUses:             viper.GetInt("scan.browser.max_uses"),
		HealthCheckInterval: time.Duration(viper.GetInt("scan.browser.health_check_interval")) * time.Second,
	}
	if cfg.Size <= 0 {
		cfg.Size = 5
	}
	if cfg.WarmInstances > cfg.Size {
		cfg.WarmInstances = cfg.Size
	}
	return cfg
}

// Pool hands out browser instances up to a fixed cap, recycling any that
// age out, sit idle too long, or exceed their use budget. Instances are
// created lazily; WarmInstances are pre-launched in the background so the
// first scans do not pay the Chromium startup cost.
type Pool struct {
	config PoolConfig

	mu      sync.Mutex
	created int
	closed  bool

	idle chan *Instance

	// swapped out in tests, which cannot launch real browsers
	factory func() (*Instance, error)
	probe   func(*Instance) bool
	destroy func(*Instance)

	stopHealth chan struct{}
}

func NewPool(config PoolConfig) *Pool {
	p := &Pool{
		config:     config,
		idle:       make(chan *Instance, config.Size),
		stopHealth: make(chan struct{}),
	}
	p.factory = p.launchInstance
	p.probe = probeInstance
	p.destroy = destroyInstance
	return p
}

// Start pre-warms instances and begins the periodic health sweep.
func (p *Pool) Start() {
	for i := 0; i < p.config.WarmInstances; i++ {
		go func() {
			inst, err := p.tryCreate()
			if err != nil {
				log.Warn().Err(err).Msg("Browser warm-up launch failed")
				return
			}
			if inst != nil {
				p.release(inst, false)
			}
		}()
	}
	if p.config.HealthCheckInterval > 0 {
		go p.healthLoop()
	}
}

// Acquire returns a usable instance, launching a new one when under the
// cap, or blocks until one is released or ctx is cancelled.
func (p *Pool) Acquire(ctx context.Context) (*Instance, error) {
	for {
		select {
		case inst := <-p.idle:
			if p.shouldRecycle(inst, time.Now()) {
				p.retire(inst)
				continue
			}
			return inst, nil
		default:
		}

		inst, err := p.tryCreate()
		if err != nil {
			return nil, err
		}
		if inst != nil {
			return inst, nil
		}

		select {
		case inst := <-p.idle:
			if p.shouldRecycle(inst, time.Now()) {
				p.retire(inst)
				continue
			}
			return inst, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns an instance after a scan. Instances past their budget
// are destroyed instead of going back to the idle set.
func (p *Pool) Release(inst *Instance) {
	p.release(inst, true)
}

func (p *Pool) release(inst *Instance, used bool) {
	if used {
		inst.uses++
	}
	inst.lastUsed = time.Now()

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed || p.shouldRecycle(inst, time.Now()) {
		p.retire(inst)
		return
	}

	select {
	case p.idle <- inst:
	default:
		p.retire(inst)
	}
}

// Discard destroys an instance without reuse, for browsers left in an
// unknown state by a failed scan.
func (p *Pool) Discard(inst *Instance) {
	p.retire(inst)
}

func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stopHealth)
	for {
		select {
		case inst := <-p.idle:
			p.retire(inst)
		default:
			return
		}
	}
}

// tryCreate launches a new instance if the cap allows, returning nil
// without error when the pool is full.
func (p *Pool) tryCreate() (*Instance, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.created >= p.config.Size {
		p.mu.Unlock()
		return nil, nil
	}
	p.created++
	p.mu.Unlock()

	inst, err := p.factory()
	if err != nil {
		p.mu.Lock()
		p.created--
		p.mu.Unlock()
		return nil, err
	}
	return inst, nil
}

func (p *Pool) shouldRecycle(inst *Instance, now time.Time) bool {
	if p.config.MaxAge > 0 && now.Sub(inst.createdAt) > p.config.MaxAge {
		return true
	}
	if p.config.MaxIdle > 0 && !inst.lastUsed.IsZero() && now.Sub(inst.lastUsed) > p.config.MaxIdle {
		return true
	}
	if p.config.MaxUses > 0 && inst.uses >= p.config.MaxUses {
		return true
	}
	return false
}

func (p *Pool) retire(inst *Instance) {
	p.destroy(inst)
	p.mu.Lock()
	p.created--
	p.mu.Unlock()
}

func (p *Pool) healthLoop() {
	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopHealth:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

// sweep probes every currently idle instance and retires the expired and
// the unresponsive ones.
func (p *Pool) sweep() {
	var keep []*Instance
	now := time.Now()
	for {
		select {
		case inst := <-p.idle:
			if p.shouldRecycle(inst, now) || !p.probe(inst) {
				p.retire(inst)
				continue
			}
			keep = append(keep, inst)
		default:
			for _, inst := range keep {
				select {
				case p.idle <- inst:
				default:
					p.retire(inst)
				}
			}
			return
		}
	}
}

func (p *Pool) launchInstance() (*Instance, error) {
	controlURL, err := GetBrowserLauncher().Launch()
	if err != nil {
		return nil, err
	}
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, err
	}
	log.Debug().Msg("Launched browser instance")
	return &Instance{Browser: b, createdAt: time.Now()}, nil
}

func probeInstance(inst *Instance) bool {
	page, err := inst.Browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return false
	}
	defer page.Close()
	return true
}

func destroyInstance(inst *Instance) {
	if inst.Browser != nil {
		if err := inst.Browser.Close(); err != nil {
			log.Debug().Err(err).Msg("Browser close failed during recycle")
		}
	}
}

package tiles

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

// Source is the randomness the generator draws from. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
	Float64() float64
}

// Config holds the layout tuning knobs. The mobile bias and append limits
// were tuned by eye and are kept adjustable.
type Config struct {
	BaseTileWidth  int
	BaseTileHeight int
	Density        float64
	MaxInstances   int
	// CoverageFactor floors the instance count at CoverageFactor * len(defs).
	CoverageFactor int

	FallbackWidth  int
	FallbackHeight int

	MobileBreakpoint   int
	MobileInitialCount int
	MobileWideChance   float64

	AppendBatchSize  int
	AppendWideChance float64
	AppendCap        int
}

// DefaultConfig returns the production layout settings.
func DefaultConfig() Config {
	return Config{
		BaseTileWidth:      160,
		BaseTileHeight:     160,
		Density:            1.4,
		MaxInstances:       48,
		CoverageFactor:     3,
		FallbackWidth:      1280,
		FallbackHeight:     720,
		MobileBreakpoint:   768,
		MobileInitialCount: 40,
		MobileWideChance:   0.2,
		AppendBatchSize:    24,
		AppendWideChance:   0.15,
		AppendCap:          200,
	}
}

// Generator produces tile instances. It is safe for concurrent use when its
// Source is; the default source is.
type Generator struct {
	cfg Config
	rnd Source
	now func() time.Time

	mu        sync.Mutex
	lastStamp int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSource replaces the random source, typically with a seeded one in tests.
func WithSource(src Source) Option {
	return func(g *Generator) { g.rnd = src }
}

// WithClock replaces the clock used for instance id stamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator returns a generator using cfg.
func NewGenerator(cfg Config, opts ...Option) *Generator {
	g := &Generator{
		cfg: cfg,
		rnd: globalSource{},
		now: time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Config returns the generator settings.
func (g *Generator) Config() Config { return g.cfg }

// IsMobile reports whether a viewport width selects the mobile policy.
func (g *Generator) IsMobile(width int) bool {
	return width > 0 && width <= g.cfg.MobileBreakpoint
}

// Viewport returns the dimensions generation uses, substituting the fallback
// viewport when either dimension is unknown.
func (g *Generator) Viewport(width, height int) (int, int) {
	if width <= 0 || height <= 0 {
		return g.cfg.FallbackWidth, g.cfg.FallbackHeight
	}
	return width, height
}

// EstimateCount returns how many instances roughly fill a desktop viewport.
func (g *Generator) EstimateCount(width, height, definitions int) int {
	cols := max(1, int(math.Ceil(float64(width)/float64(g.cfg.BaseTileWidth))))
	rows := max(1, int(math.Ceil(float64(height)/float64(g.cfg.BaseTileHeight))))
	estimated := float64(cols*rows) * g.cfg.Density
	capped := math.Min(estimated, float64(g.cfg.MaxInstances))
	return max(int(math.Round(capped)), definitions*g.cfg.CoverageFactor)
}

// TargetCount returns the size of a freshly generated working set.
func (g *Generator) TargetCount(width, height, definitions int) int {
	width, height = g.Viewport(width, height)
	if g.IsMobile(width) {
		return max(g.cfg.MobileInitialCount, definitions*g.cfg.CoverageFactor)
	}
	return g.EstimateCount(width, height, definitions)
}

// Generate builds a shuffled working set for the viewport: one instance per
// definition, then random fill up to the target count.
func (g *Generator) Generate(defs []Definition, width, height int) []Instance {
	if len(defs) == 0 {
		return nil
	}
	width, height = g.Viewport(width, height)
	mobile := g.IsMobile(width)
	total := g.TargetCount(width, height, len(defs))
	stamp := g.stamp()

	instances := make([]Instance, 0, total)
	for i, d := range defs {
		instances = append(instances, Instance{
			ID:   fmt.Sprintf("%s-%d-base-%d", d.Key, stamp, i),
			Key:  d.Key,
			Size: g.size(mobile),
		})
	}
	for i := len(instances); i < total; i++ {
		key := defs[g.rnd.IntN(len(defs))].Key
		instances = append(instances, Instance{
			ID:   fmt.Sprintf("%s-%d-extra-%d-%s", key, stamp, i, g.suffix()),
			Key:  key,
			Size: g.size(mobile),
		})
	}

	shuffle(g.rnd, instances)
	return instances
}

// Append adds a batch of small instances for infinite scroll. It returns
// current unchanged once the working set has reached the cap, and trims the
// batch so the cap is never exceeded.
func (g *Generator) Append(current []Instance, defs []Definition) []Instance {
	room := g.cfg.AppendCap - len(current)
	if room <= 0 || len(defs) == 0 {
		return current
	}
	n := min(g.cfg.AppendBatchSize, room)
	stamp := g.stamp()

	out := make([]Instance, len(current), len(current)+n)
	copy(out, current)
	for i := range n {
		key := defs[g.rnd.IntN(len(defs))].Key
		size := Medium
		if g.rnd.Float64() < g.cfg.AppendWideChance {
			size = Wide
		}
		out = append(out, Instance{
			ID:   fmt.Sprintf("%s-%d-append-%d-%s", key, stamp, i, g.suffix()),
			Key:  key,
			Size: size,
		})
	}
	return out
}

func (g *Generator) size(mobile bool) Size {
	if mobile {
		if g.rnd.Float64() < g.cfg.MobileWideChance {
			return Wide
		}
		return Medium
	}
	return Sizes[g.rnd.IntN(len(Sizes))]
}

// stamp returns a millisecond timestamp that strictly increases across calls,
// so two generations in the same millisecond never share ids.
func (g *Generator) stamp() int64 {
	ms := g.now().UnixMilli()
	g.mu.Lock()
	defer g.mu.Unlock()
	if ms <= g.lastStamp {
		ms = g.lastStamp + 1
	}
	g.lastStamp = ms
	return ms
}

func (g *Generator) suffix() string {
	s := strconv.FormatInt(int64(g.rnd.IntN(36*36*36*36)), 36)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

// shuffle is an in-place Fisher–Yates shuffle.
func shuffle[T any](src Source, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

type globalSource struct{}

func (globalSource) IntN(n int) int   { return rand.IntN(n) }
func (globalSource) Float64() float64 { return rand.Float64() }

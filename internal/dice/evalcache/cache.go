// Package evalcache memoizes compiled dice expressions in front of the
// expression parser.
//
// Compiled expressions live in two recency-ordered tiers: a small hot tier
// consulted first and a larger overall tier. A hit in the overall tier
// promotes the expression into the hot tier. Only the random draw runs on a
// hit. Rejected expressions are never stored, so a rejection is recomputed
// on the next lookup.
package evalcache

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/louisbranch/dicebot/internal/dice"
)

const (
	// DefaultHotSize is the default capacity of the hot tier.
	DefaultHotSize = 64
	// DefaultSize is the default capacity of the overall tier.
	DefaultSize = 1024
	// DefaultMaxDice is the default total dice bound per expression.
	DefaultMaxDice = 1000
)

// ErrEvaluation wraps every expression rejected by the evaluator.
var ErrEvaluation = errors.New("evaluation failed")

// Options configures a Cache. Zero values select the defaults.
type Options struct {
	HotSize int
	Size    int
	MaxDice int
}

func (o Options) withDefaults() Options {
	if o.HotSize <= 0 {
		o.HotSize = DefaultHotSize
	}
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.MaxDice <= 0 {
		o.MaxDice = DefaultMaxDice
	}
	return o
}

// Stats reports cache activity.
type Stats struct {
	Hits       uint64
	Misses     uint64
	HotLen     int
	OverallLen int
}

// Cache evaluates dice expressions, reusing compiled forms across calls. It
// is safe for concurrent use.
type Cache struct {
	source  dice.NumberSource
	maxDice int
	hot     *lru.Cache[string, *dice.Expression]
	overall *lru.Cache[string, *dice.Expression]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// New creates a cache drawing dice faces from source.
func New(source dice.NumberSource, opts Options) (*Cache, error) {
	if source == nil {
		return nil, errors.New("number source is required")
	}
	opts = opts.withDefaults()
	hot, err := lru.New[string, *dice.Expression](opts.HotSize)
	if err != nil {
		return nil, fmt.Errorf("create hot tier: %w", err)
	}
	overall, err := lru.New[string, *dice.Expression](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("create overall tier: %w", err)
	}
	return &Cache{
		source:  source,
		maxDice: opts.MaxDice,
		hot:     hot,
		overall: overall,
	}, nil
}

// Key returns the cache key for an expression under the configured bound.
func (c *Cache) Key(expression string) string {
	return dice.Normalize(expression) + "#" + strconv.Itoa(c.maxDice)
}

// Compile returns the compiled expression without drawing any dice. It is
// the validation path used when a command is configured.
func (c *Cache) Compile(expression string) (*dice.Expression, error) {
	key := c.Key(expression)
	if expr, ok := c.hot.Get(key); ok {
		c.hits.Add(1)
		return expr, nil
	}
	if expr, ok := c.overall.Get(key); ok {
		c.hits.Add(1)
		c.hot.Add(key, expr)
		return expr, nil
	}
	c.misses.Add(1)

	expr, err := dice.Parse(expression, c.maxDice)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}
	c.overall.Add(key, expr)
	c.hot.Add(key, expr)
	return expr, nil
}

// Evaluate rolls the expression. reEvaluate is recorded in every die id.
func (c *Cache) Evaluate(expression string, reEvaluate int) (dice.Result, error) {
	expr, err := c.Compile(expression)
	if err != nil {
		return dice.Result{}, err
	}
	return expr.Roll(c.source, reEvaluate), nil
}

// Reroll draws fresh values for the marked dice of prior.
func (c *Cache) Reroll(prior dice.Result, marked func(dice.DieID) bool) dice.Result {
	return prior.Reroll(c.source, marked)
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		HotLen:     c.hot.Len(),
		OverallLen: c.overall.Len(),
	}
}

package player

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiplayer/pkg/playback"
)

var _ Plugin = (*LogInterceptor)(nil)

// LogInterceptor routes libav logs to the player's logger, attributing them to the
// session owning the classer when there's one. Identical patterns logged in a row can be
// merged.
type LogInterceptor struct {
	c             *astikit.Closer
	ctx           context.Context
	mp            sync.Mutex // Locks patterns
	o             LogInterceptorOptions
	p             *Player
	patterns      map[string]*logPattern // Indexed by key
	previousLevel *astiav.LogLevel
}

type LogInterceptorOptions struct {
	Level astiav.LogLevel
	// When processed is false, the default mapping is used
	LevelFunc func(l astiav.LogLevel) (ll astikit.LoggerLevel, processed, stop bool)
	Merge     LogInterceptorMergeOptions
}

type LogInterceptorMergeOptions struct {
	// Number of times a pattern is written before being merged
	AllowedCount uint
	// Merging is disabled when 0
	Buffer time.Duration
}

type logPattern struct {
	count     uint
	ctx       context.Context
	firstSeen time.Time
	format    string
	key       string
	ll        astikit.LoggerLevel
	written   uint
}

var classerContext = playback.ClasserContext

func NewLogInterceptor(o LogInterceptorOptions) *LogInterceptor {
	return &LogInterceptor{
		o:        o,
		patterns: make(map[string]*logPattern),
	}
}

func (li *LogInterceptor) Metadata() Metadata {
	return Metadata{Name: "player.log_interceptor"}
}

func (li *LogInterceptor) Init(ctx context.Context, c *astikit.Closer, p *Player) error {
	li.c = c
	li.ctx = ctx
	li.p = p
	return nil
}

func (li *LogInterceptor) Start(ctx context.Context, tc astikit.TaskCreator) {
	// Set level
	previous := astiav.GetLogLevel()
	li.previousLevel = &previous
	astiav.SetLogLevel(li.o.Level)

	// Set callback
	astiav.SetLogCallback(li.callback)

	// Make sure libav logs are restored
	li.c.Add(li.close)

	// Merge patterns periodically
	if li.o.Merge.Buffer > 0 {
		tc().Do(func() { astikit.Tick(ctx, li.o.Merge.Buffer/10, li.tick) })
	}
}

func (li *LogInterceptor) close() {
	// Restore level
	if li.previousLevel != nil {
		astiav.SetLogLevel(*li.previousLevel)
		li.previousLevel = nil
	}

	// Restore callback
	astiav.ResetLogCallback()

	// Flush patterns
	li.flush()
}

func (li *LogInterceptor) callback(c astiav.Classer, level astiav.LogLevel, format, msg string) {
	// Clean message
	if msg = strings.TrimSpace(msg); msg == "" {
		return
	}

	// Clean format
	if format = strings.TrimSpace(format); format == "%s" {
		format = msg
	}

	// Get context
	ctx := li.ctx
	if c != nil {
		if cl := c.Class(); cl != nil {
			msg += ": " + cl.String()
		}
		if v, ok := classerContext(c); ok {
			ctx = v
		}
	}

	// Get logger level
	ll, prefix, ok := li.loggerLevel(level)
	if !ok {
		return
	}

	// Write
	li.write(ctx, ll, "libav: "+format, "libav: "+prefix+msg)
}

func (li *LogInterceptor) loggerLevel(level astiav.LogLevel) (ll astikit.LoggerLevel, prefix string, ok bool) {
	// Custom
	if li.o.LevelFunc != nil {
		var processed, stop bool
		if ll, processed, stop = li.o.LevelFunc(level); stop {
			return
		} else if processed {
			return ll, "", true
		}
	}

	// Default
	switch level {
	case astiav.LogLevelDebug, astiav.LogLevelVerbose:
		return astikit.LoggerLevelDebug, "", true
	case astiav.LogLevelInfo:
		return astikit.LoggerLevelInfo, "", true
	case astiav.LogLevelWarning:
		return astikit.LoggerLevelWarn, "", true
	case astiav.LogLevelError:
		return astikit.LoggerLevelError, "", true
	case astiav.LogLevelFatal:
		return astikit.LoggerLevelError, "FATAL! ", true
	case astiav.LogLevelPanic:
		return astikit.LoggerLevelError, "PANIC! ", true
	}
	return
}

func (li *LogInterceptor) write(ctx context.Context, ll astikit.LoggerLevel, format, msg string) {
	// Pattern has already been written enough
	if li.o.Merge.Buffer > 0 && !li.seen(ctx, ll, format) {
		return
	}

	// Write
	li.p.Logger().WriteC(ctx, ll, msg)
}

// seen records the pattern and returns whether the message should be written
func (li *LogInterceptor) seen(ctx context.Context, ll astikit.LoggerLevel, format string) bool {
	// Lock
	li.mp.Lock()
	defer li.mp.Unlock()

	// Pattern exists
	key := ll.String() + ":" + format
	if p, ok := li.patterns[key]; ok {
		p.count++
		if li.o.Merge.AllowedCount == 0 || p.count > li.o.Merge.AllowedCount {
			return false
		}
		p.written++
		return true
	}

	// Create pattern
	li.patterns[key] = &logPattern{
		count:     1,
		ctx:       ctx,
		firstSeen: astikit.Now(),
		format:    format,
		key:       key,
		ll:        ll,
		written:   1,
	}
	return true
}

func (li *LogInterceptor) tick(t time.Time) {
	// Lock
	li.mp.Lock()
	defer li.mp.Unlock()

	// Remove patterns whose buffer is over
	for _, p := range li.patterns {
		if t.Sub(p.firstSeen) >= li.o.Merge.Buffer {
			li.removePatternUnlocked(p)
		}
	}
}

func (li *LogInterceptor) flush() {
	// Lock
	li.mp.Lock()
	defer li.mp.Unlock()

	// Remove all patterns
	for _, p := range li.patterns {
		li.removePatternUnlocked(p)
	}
}

// Assumes mp is locked
func (li *LogInterceptor) removePatternUnlocked(p *logPattern) {
	switch repeated := p.count - p.written; {
	case repeated == 1:
		li.p.Logger().WriteC(p.ctx, p.ll, "player: pattern repeated once: "+p.format)
	case repeated > 1:
		li.p.Logger().WriteC(p.ctx, p.ll, fmt.Sprintf("player: pattern repeated %d times: %s", repeated, p.format))
	}
	delete(li.patterns, p.key)
}

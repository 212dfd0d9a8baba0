package movement

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/udisondev/gridmerge/internal/world"
)

// ErrBadFix is returned when a feed line is not a "lat,lng" pair.
var ErrBadFix = errors.New("malformed location fix")

// ParseFix parses one "lat,lng" feed line. Latitude must lie in [-90, 90]
// and longitude in [-180, 180].
func ParseFix(line string) (world.LatLng, error) {
	latStr, lngStr, ok := strings.Cut(strings.TrimSpace(line), ",")
	if !ok {
		return world.LatLng{}, fmt.Errorf("%w: %q", ErrBadFix, line)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return world.LatLng{}, fmt.Errorf("%w: %q: %v", ErrBadFix, line, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return world.LatLng{}, fmt.Errorf("%w: %q: %v", ErrBadFix, line, err)
	}
	p := world.LatLng{Lat: lat, Lng: lng}
	if !p.IsFinite() {
		return world.LatLng{}, fmt.Errorf("%w: %q: not finite", ErrBadFix, line)
	}
	if math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return world.LatLng{}, fmt.Errorf("%w: %q: out of range", ErrBadFix, line)
	}
	return p, nil
}

// GeolocationSource reads location fixes from a feed and emits one per
// poll interval. Blank lines and lines starting with '#' are skipped,
// malformed lines are logged and skipped. The source goes idle at EOF.
type GeolocationSource struct {
	open     func() (io.ReadCloser, error)
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGeolocationSource creates a source; open is called on every Start so
// the feed is replayed after a toggle.
func NewGeolocationSource(open func() (io.ReadCloser, error), interval time.Duration) *GeolocationSource {
	return &GeolocationSource{open: open, interval: interval}
}

// Kind implements Source.
func (g *GeolocationSource) Kind() Kind {
	return KindGeolocation
}

// Start implements Source.
func (g *GeolocationSource) Start(ctx context.Context, out chan<- world.LatLng) error {
	if g.interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", g.interval)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return errors.New("geolocation source already started")
	}

	feed, err := g.open()
	if err != nil {
		return fmt.Errorf("opening location feed: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	g.cancel = cancel
	g.done = done

	go func() {
		defer close(done)
		defer feed.Close()
		g.run(runCtx, feed, out)
	}()
	return nil
}

// Stop implements Source. Blocks until the feed goroutine has exited.
func (g *GeolocationSource) Stop() {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel, g.done = nil, nil
	g.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (g *GeolocationSource) run(ctx context.Context, feed io.Reader, out chan<- world.LatLng) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	scanner := bufio.NewScanner(feed)
	line := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		fix, ok := g.next(scanner, &line)
		if !ok {
			if err := scanner.Err(); err != nil {
				slog.Error("reading location feed", "error", err)
			} else {
				slog.Info("location feed exhausted", "lines", line)
			}
			return
		}

		select {
		case out <- fix:
		case <-ctx.Done():
			return
		}
	}
}

// next returns the next valid fix from the feed.
func (g *GeolocationSource) next(scanner *bufio.Scanner, line *int) (world.LatLng, bool) {
	for scanner.Scan() {
		*line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fix, err := ParseFix(text)
		if err != nil {
			slog.Warn("skipping location fix", "line", *line, "error", err)
			continue
		}
		return fix, true
	}
	return world.LatLng{}, false
}

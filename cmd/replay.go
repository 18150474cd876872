package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/cheggaaa/pb/v3/termutil"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/royalcat/listingmap/clock"
	"github.com/royalcat/listingmap/config"
	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/internal/stats"
	"github.com/royalcat/listingmap/listing"
	"github.com/royalcat/listingmap/readiness"
	"github.com/royalcat/listingmap/session"
	"github.com/sourcegraph/conc/pool"
	"github.com/urfave/cli/v3"
)

// traceEvent is one line of a recorded trace. At is the offset from the
// start of the trace in milliseconds.
type traceEvent struct {
	At       int64         `json:"at"`
	Viewport *georect.Rect `json:"viewport,omitempty"`
	LoadMore bool          `json:"loadMore,omitempty"`
}

type replayResult struct {
	Name    string
	Events  int
	Bytes   int64
	Stats   session.Stats
	Markers int
	Cards   int
}

func replay(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	threads := ctx.Int("threads")
	if threads == 0 {
		threads = runtime.GOMAXPROCS(0)
	}

	kind, err := listing.ParseKind(ctx.String("kind"))
	if err != nil {
		return err
	}

	log := slog.Default().With("command", "replay")
	_, clients := newAPIClient(cfg, log)
	src := clients[kind]

	inputs := ctx.StringSlice("input")
	traces := make([][]traceEvent, len(inputs))
	sizes := make([]int64, len(inputs))
	total := 0
	for i, input := range inputs {
		traces[i], sizes[i], err = readTraceFile(input)
		if err != nil {
			return fmt.Errorf("read trace %s: %w", input, err)
		}
		total += len(traces[i])
	}

	var collector *stats.Collector
	if ctx.Bool("stats") {
		collector, err = stats.NewCollector(time.Second)
		if err != nil {
			return err
		}
		collector.Start()
	}

	bar := pb.Start64(int64(total))
	bar.Set("prefix", "replaying")
	bar.SetRefreshRate(time.Second)
	if w, err := termutil.TerminalWidth(); w == 0 || err != nil {
		bar.SetTemplateString(`{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }} {{rtime . "ETA %s"}}` + "\n")
	}

	var mu sync.Mutex
	results := make([]replayResult, len(inputs))

	p := pool.New().WithErrors().WithContext(ctx.Context).WithMaxGoroutines(threads)
	for i := range inputs {
		p.Go(func(ctx context.Context) error {
			res, err := replayTrace(ctx, cfg, kind, src, traces[i], func() { bar.Increment() }, log)
			if err != nil {
				return fmt.Errorf("replay %s: %w", inputs[i], err)
			}
			res.Name = inputs[i]
			res.Bytes = sizes[i]

			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	err = p.Wait()
	bar.Finish()
	if err != nil {
		return err
	}

	printSummary(os.Stdout, results)
	if collector != nil {
		if _, err := collector.Stop().WriteTo(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}

// replayTrace drives one session with a fake clock so debounce delays are
// honoured without waiting for them.
func replayTrace(ctx context.Context, cfg *config.Config, kind listing.Kind, src sources, events []traceEvent, step func(), log *slog.Logger) (replayResult, error) {
	c := clock.NewFake(time.Unix(0, 0))
	sess := sessionFactory(cfg, map[listing.Kind]sources{kind: src}, c, readiness.Ready(), log)(kind)
	defer sess.Close()

	var elapsed time.Duration
	for _, ev := range events {
		at := time.Duration(ev.At) * time.Millisecond
		if at > elapsed {
			c.Advance(at - elapsed)
			elapsed = at
		}
		if err := sess.Wait(ctx); err != nil {
			return replayResult{}, err
		}

		switch {
		case ev.Viewport != nil:
			if err := sess.SetViewport(*ev.Viewport); err != nil {
				log.Warn("skipping trace event", "at", ev.At, "error", err)
			}
		case ev.LoadMore:
			if err := sess.LoadMore(); err != nil {
				return replayResult{}, err
			}
		}
		if step != nil {
			step()
		}
	}

	// let the trailing commits fire
	c.Advance(cfg.Markers.Debounce + cfg.Cards.Debounce)
	if err := sess.Wait(ctx); err != nil {
		return replayResult{}, err
	}

	return replayResult{
		Events:  len(events),
		Stats:   sess.Stats(),
		Markers: len(sess.Markers().Items),
		Cards:   len(sess.Cards().Items),
	}, nil
}

func readTraceFile(name string) ([]traceEvent, int64, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, 0, fmt.Errorf("can`t open file error: %s", err.Error())
	}
	defer file.Close()

	var size int64
	if stat, err := file.Stat(); err == nil {
		size = stat.Size()
	}

	var r io.Reader = file
	if strings.HasSuffix(name, ".zst") {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, 0, fmt.Errorf("can`t create zstd reader: %s", err.Error())
		}
		defer dec.Close()
		r = dec
	}

	events, err := readTrace(r)
	return events, size, err
}

func readTrace(r io.Reader) ([]traceEvent, error) {
	var events []traceEvent

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var ev traceEvent
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ev.Viewport == nil && !ev.LoadMore {
			return nil, fmt.Errorf("line %d: event has neither viewport nor loadMore", line)
		}
		if n := len(events); n > 0 && ev.At < events[n-1].At {
			return nil, fmt.Errorf("line %d: event at %dms before previous event at %dms", line, ev.At, events[n-1].At)
		}
		events = append(events, ev)
	}

	return events, scanner.Err()
}

func printSummary(w io.Writer, results []replayResult) {
	var sum session.Stats
	var bytes int64
	for _, r := range results {
		fmt.Fprintf(w, "%s (%s): %s events, %s marker fetches (%s pages), %s cache hits, %s skipped, %s card requests, %s errors, %s markers, %s cards\n",
			r.Name,
			humanize.Bytes(uint64(r.Bytes)),
			humanize.Comma(int64(r.Events)),
			humanize.Comma(int64(r.Stats.MarkerFetches)),
			humanize.Comma(int64(r.Stats.MarkerPages)),
			humanize.Comma(int64(r.Stats.MarkerCacheHits)),
			humanize.Comma(int64(r.Stats.MarkerSkipped)),
			humanize.Comma(int64(r.Stats.CardRequests)),
			humanize.Comma(int64(r.Stats.Errors)),
			humanize.Comma(int64(r.Markers)),
			humanize.Comma(int64(r.Cards)),
		)
		sum.MarkerFetches += r.Stats.MarkerFetches
		sum.MarkerCacheHits += r.Stats.MarkerCacheHits
		sum.CardRequests += r.Stats.CardRequests
		sum.Errors += r.Stats.Errors
		bytes += r.Bytes
	}

	requests := sum.MarkerFetches + sum.CardRequests
	fmt.Fprintf(w, "total: %s traces, %s read, %s fetches, %s cache hits, %s errors\n",
		humanize.Comma(int64(len(results))),
		humanize.Bytes(uint64(bytes)),
		humanize.Comma(int64(requests)),
		humanize.Comma(int64(sum.MarkerCacheHits)),
		humanize.Comma(int64(sum.Errors)),
	)
}

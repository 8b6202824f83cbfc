package vectortile

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/paulmach/orb/maptile"
	"github.com/shirou/gopsutil/mem"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const progressInterval = 1000

//ScanOptions 扫描参数
type ScanOptions struct {
	Workers       int
	MinFreeMemory uint64 // bytes
	MinZoom       int
	MaxZoom       int // <0 means no limit
}

// Workers returns the number of scan goroutines: n when positive, otherwise
// MAX_THREADS or the CPU count. Rounded down to a power of 2.
func Workers(n int) int {
	cpus := n
	if cpus <= 0 {
		if s := os.Getenv("MAX_THREADS"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				log.Errorf("MAX_THREADS must be a number (got %s)", s)
			}
			cpus = v
		}
	}
	if cpus <= 0 {
		cpus = runtime.NumCPU()
	}
	if cpus < 1 {
		cpus = 1
	}
	return 1 << uint(math.Log2(float64(cpus)))
}

//CheckMemory 可用内存低于want时告警
func CheckMemory(want uint64) uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warnf("cannot read memory status: %v", err)
		return 0
	}
	if vm.Available < want {
		log.Warnf("only %d MiB of memory available, %d MiB requested", vm.Available>>20, want>>20)
	}
	return vm.Available
}

//Scan 并发解析数据源中全部瓦片并统计
func Scan(ctx context.Context, src Source, opts ScanOptions) (*Stats, error) {
	all, err := src.Tiles(ctx)
	if err != nil {
		return nil, err
	}
	var tiles []maptile.Tile
	for _, t := range all {
		z := int(t.Z)
		if z < opts.MinZoom || (opts.MaxZoom >= 0 && z > opts.MaxZoom) {
			continue
		}
		tiles = append(tiles, t)
	}

	workers := Workers(opts.Workers)
	if workers > len(tiles) && len(tiles) > 0 {
		workers = len(tiles)
	}
	CheckMemory(opts.MinFreeMemory)
	log.WithFields(log.Fields{"tiles": len(tiles), "workers": workers}).Info("scanning")

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan maptile.Tile)
	g.Go(func() error {
		defer close(jobs)
		for _, t := range tiles {
			select {
			case jobs <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var done int64
	partial := make([]*Stats, workers)
	for w := range partial {
		st := NewStats()
		partial[w] = st
		g.Go(func() error {
			for t := range jobs {
				if err := scanTile(ctx, src, t, st); err != nil {
					return err
				}
				if n := atomic.AddInt64(&done, 1); n%progressInterval == 0 {
					log.Debugf("scanned %d/%d tiles", n, len(tiles))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := NewStats()
	for _, st := range partial {
		stats.Merge(st)
	}
	return stats, nil
}

// scanTile fails only on source errors; undecodable tiles are counted.
func scanTile(ctx context.Context, src Source, t maptile.Tile, st *Stats) error {
	data, err := src.ReadTile(ctx, int(t.Z), int(t.X), int(t.Y))
	if err != nil {
		return err
	}
	raw, err := Decompress(data)
	if err == nil {
		var tile *Tile
		if tile, err = Unmarshal(raw); err == nil {
			st.AddTile(int(t.Z), tile, len(data))
			return nil
		}
	}
	log.WithField("tile", fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)).Warn(err)
	st.Errors++
	return nil
}

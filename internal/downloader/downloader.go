// Package downloader fetches historical klines from Binance and stores them
// in the binary bar format used by backtests.
package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"stratx-trader-go/internal/logger"
	"stratx-trader-go/internal/strx"
)

// requestPause throttles paged requests to stay clear of the API limits.
const requestPause = 200 * time.Millisecond

// Downloader pulls klines over the public REST API; no API keys needed.
type Downloader struct {
	client *binance.Client
	log    *zap.SugaredLogger
}

func New() *Downloader {
	return &Downloader{
		client: binance.NewClient("", ""),
		log:    logger.S(),
	}
}

// FilePath is the conventional location of a downloaded range inside dataDir.
func FilePath(dataDir, symbol, interval string, start, end time.Time) string {
	name := fmt.Sprintf("%s_%s_%d-%d.strx", symbol, interval, start.UnixMilli(), end.UnixMilli())
	return filepath.Join(dataDir, name)
}

// Download fetches the range into path. An existing file is treated as a
// cache hit and left untouched. Pages of 1000 klines are requested until the
// range is covered; the bar writer drops any overlap between pages.
func (d *Downloader) Download(ctx context.Context, symbol, interval, path string, start, end time.Time) error {
	if _, err := os.Stat(path); err == nil {
		d.log.Infow("using cached bar data", "path", path)
		return nil
	}

	d.log.Infow("downloading klines",
		"symbol", symbol, "interval", interval,
		"from", start.Format("2006-01-02"), "to", end.Format("2006-01-02"))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w, err := strx.NewWriter(file, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return err
	}

	for t := start; t.Before(end); {
		klines, err := d.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(t.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(1000).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("fetch klines: %w", err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			open, err := strconv.ParseFloat(k.Open, 64)
			if err != nil {
				return fmt.Errorf("parse open %q: %w", k.Open, err)
			}
			high, _ := strconv.ParseFloat(k.High, 64)
			low, _ := strconv.ParseFloat(k.Low, 64)
			closePrice, _ := strconv.ParseFloat(k.Close, 64)
			volume, _ := strconv.ParseFloat(k.Volume, 64)
			if err := w.WriteBar(k.CloseTime, open, high, low, closePrice, int64(volume)); err != nil {
				return fmt.Errorf("write bar: %w", err)
			}
		}

		t = time.UnixMilli(klines[len(klines)-1].CloseTime + 1)
		d.log.Infow("downloaded", "bars", w.Count(), "upTo", t.Format("2006-01-02 15:04:05"))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(requestPause):
		}
	}

	if w.Count() == 0 {
		os.Remove(path)
		return fmt.Errorf("no klines returned for %s %s", symbol, interval)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	d.log.Infow("download complete", "path", path, "bars", w.Count())
	return nil
}

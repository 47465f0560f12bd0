// Package strx reads and writes the compact binary bar format used for
// downloaded historical data. A file is a fixed header followed by
// fixed-width records, all big-endian:
//
//	magic    4 bytes  B4 FF B4 FF
//	version  1 byte   01
//	start    int64    requested range start, epoch ms
//	end      int64    requested range end, epoch ms
//	records  repeated int64 closeTime, float64 open/high/low/close, int64 volume
package strx

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"go.uber.org/zap"

	"stratx-trader-go/internal/logger"
	"stratx-trader-go/internal/models"
)

var magic = [4]byte{0xB4, 0xFF, 0xB4, 0xFF}

const (
	version    byte = 0x01
	headerSize      = 4 + 1 + 8 + 8
	recordSize      = 8 + 4*8 + 8
)

// ErrFormat marks a file that is not a valid bar data file: wrong magic,
// unsupported version, truncated record or no records at all.
var ErrFormat = errors.New("malformed bar data file")

// Header is the decoded file header.
type Header struct {
	RangeStart int64 // epoch ms
	RangeEnd   int64 // epoch ms
}

// Writer emits a bar data file. Records must be appended oldest-first;
// duplicate close times are skipped with a warning so overlapping download
// pages cannot corrupt a file.
type Writer struct {
	w     *bufio.Writer
	seen  map[int64]struct{}
	count int
	log   *zap.SugaredLogger
}

// NewWriter writes the header for the given requested range and returns a
// Writer ready for records.
func NewWriter(w io.Writer, rangeStart, rangeEnd int64) (*Writer, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic[:]); err != nil {
		return nil, err
	}
	if err := bw.WriteByte(version); err != nil {
		return nil, err
	}
	if err := binary.Write(bw, binary.BigEndian, rangeStart); err != nil {
		return nil, err
	}
	if err := binary.Write(bw, binary.BigEndian, rangeEnd); err != nil {
		return nil, err
	}
	return &Writer{w: bw, seen: make(map[int64]struct{}), log: logger.S()}, nil
}

// WriteBar appends one record. A close time already written is silently
// dropped after a warning.
func (w *Writer) WriteBar(closeTime int64, open, high, low, close float64, volume int64) error {
	if _, dup := w.seen[closeTime]; dup {
		w.log.Warnf("skipping duplicate bar at %d", closeTime)
		return nil
	}
	w.seen[closeTime] = struct{}{}

	var buf [recordSize]byte
	binary.BigEndian.PutUint64(buf[0:], uint64(closeTime))
	binary.BigEndian.PutUint64(buf[8:], math.Float64bits(open))
	binary.BigEndian.PutUint64(buf[16:], math.Float64bits(high))
	binary.BigEndian.PutUint64(buf[24:], math.Float64bits(low))
	binary.BigEndian.PutUint64(buf[32:], math.Float64bits(close))
	binary.BigEndian.PutUint64(buf[40:], uint64(volume))
	if _, err := w.w.Write(buf[:]); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int { return w.count }

// Flush drains the buffered writer. Call it once after the final record.
func (w *Writer) Flush() error { return w.w.Flush() }

// Read decodes a complete bar data file. Each bar is smoothed against its
// predecessor when heikinAshi is set. A file with a valid header but zero
// records is malformed.
func Read(r io.Reader, heikinAshi bool) (Header, []*models.Candlestick, error) {
	var hdr Header

	var head [headerSize]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return hdr, nil, fmt.Errorf("%w: truncated header: %v", ErrFormat, err)
	}
	if head[0] != magic[0] || head[1] != magic[1] || head[2] != magic[2] || head[3] != magic[3] {
		return hdr, nil, fmt.Errorf("%w: bad magic %x", ErrFormat, head[:4])
	}
	if head[4] != version {
		return hdr, nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, head[4])
	}
	hdr.RangeStart = int64(binary.BigEndian.Uint64(head[5:]))
	hdr.RangeEnd = int64(binary.BigEndian.Uint64(head[13:]))

	var candles []*models.Candlestick
	var prev *models.Candlestick
	var rec [recordSize]byte
	for {
		_, err := io.ReadFull(r, rec[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return hdr, nil, fmt.Errorf("%w: truncated record %d: %v", ErrFormat, len(candles), err)
		}

		closeTime := int64(binary.BigEndian.Uint64(rec[0:]))
		open := math.Float64frombits(binary.BigEndian.Uint64(rec[8:]))
		high := math.Float64frombits(binary.BigEndian.Uint64(rec[16:]))
		low := math.Float64frombits(binary.BigEndian.Uint64(rec[24:]))
		close := math.Float64frombits(binary.BigEndian.Uint64(rec[32:]))
		volume := int64(binary.BigEndian.Uint64(rec[40:]))

		c, err := models.NewCandlestick(closeTime, open, high, low, close, volume)
		if err != nil {
			return hdr, nil, fmt.Errorf("record %d: %w", len(candles), err)
		}
		if heikinAshi {
			c = c.ToHeikinAshi(prev)
		}
		candles = append(candles, c)
		prev = c
	}

	if len(candles) == 0 {
		return hdr, nil, fmt.Errorf("%w: no records", ErrFormat)
	}
	return hdr, candles, nil
}

// LoadFile opens and decodes a bar data file. A missing file surfaces the
// os.Open error unchanged so callers can distinguish it from a corrupt file.
func LoadFile(path string, heikinAshi bool) (Header, []*models.Candlestick, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()
	return Read(bufio.NewReader(f), heikinAshi)
}

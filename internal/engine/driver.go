package engine

import (
	"context"
	"fmt"
	"log"
	"time"
)

// State is the driver's position in the replication loop.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateMapping    State = "mapping"
	StateSending    State = "sending"
	StateCommitting State = "committing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Options configures a Driver.
type Options struct {
	// PageSize is the maximum records fetched per page.
	PageSize int

	// BatchSize is the maximum operations per atomic batch envelope.
	BatchSize int

	// MaxRecordsPerRun caps cumulative records across pages within one run.
	// Zero means unlimited. Checked before each page fetch.
	MaxRecordsPerRun int

	// DefaultWatermark is used when the stored watermark is unparseable.
	DefaultWatermark string
}

// Driver orchestrates the read -> map -> batch -> send -> advance loop.
// One page is fully read, mapped, sent and committed before the next page
// begins; batch sends within a page are strictly sequential.
type Driver struct {
	reader ChangeReader
	mapper RowMapper
	sender BatchSender
	store  WatermarkStore
	opts   Options
	state  State
}

// NewDriver wires the replication components together.
func NewDriver(reader ChangeReader, mapper RowMapper, sender BatchSender, store WatermarkStore, opts Options) (*Driver, error) {
	if reader == nil || mapper == nil || sender == nil || store == nil {
		return nil, fmt.Errorf("all driver components are required")
	}
	if opts.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	return &Driver{
		reader: reader,
		mapper: mapper,
		sender: sender,
		store:  store,
		opts:   opts,
		state:  StateIdle,
	}, nil
}

// State returns the driver's current state.
func (d *Driver) State() State {
	return d.state
}

// RunResult summarizes one completed run.
type RunResult struct {
	State          State
	TotalRecords   int
	PagesProcessed int
	FinalWatermark string
}

// Run replicates changes until the source is exhausted or the record cap is
// reached. The watermark is persisted after every fully accepted page and
// never for a page that did not fully succeed, so a failed or interrupted
// run resumes from the last committed page.
func (d *Driver) Run(ctx context.Context) (*RunResult, error) {
	cursor, err := d.loadCursor()
	if err != nil {
		d.state = StateFailed
		return &RunResult{State: StateFailed}, err
	}

	result := &RunResult{FinalWatermark: FormatWatermark(cursor)}
	log.Printf("Loaded watermark: %s", result.FinalWatermark)

	for {
		if d.opts.MaxRecordsPerRun > 0 && result.TotalRecords >= d.opts.MaxRecordsPerRun {
			log.Printf("Reached record cap %d, stopping.", d.opts.MaxRecordsPerRun)
			break
		}

		d.state = StateFetching
		records, err := d.reader.FetchChangedSince(ctx, cursor, d.opts.PageSize)
		if err != nil {
			return d.fail(result, err)
		}
		if len(records) == 0 {
			log.Printf("No more changes after %s. Done.", result.FinalWatermark)
			break
		}
		log.Printf("Fetched %d records (after %s).", len(records), result.FinalWatermark)

		// Map the whole page before anything is sent; the first bad record
		// aborts the page with the previous watermark still committed.
		d.state = StateMapping
		ops := make([]UpsertOperation, 0, len(records))
		pageMax := cursor
		for _, rec := range records {
			op, err := d.mapper.Map(rec)
			if err != nil {
				return d.fail(result, err)
			}
			ops = append(ops, op)
			if rec.ChangedAt.After(pageMax) {
				pageMax = rec.ChangedAt
			}
		}

		d.state = StateSending
		for start := 0; start < len(ops); start += d.opts.BatchSize {
			end := start + d.opts.BatchSize
			if end > len(ops) {
				end = len(ops)
			}
			if err := d.sender.SendBatch(ctx, ops[start:end]); err != nil {
				return d.fail(result, err)
			}
			log.Printf("Posted batch %d-%d (%d records).", start+1, end, end-start)
		}

		// Every operation of this page is accepted; advance durably before
		// the next fetch.
		d.state = StateCommitting
		wm := FormatWatermark(pageMax)
		if err := d.store.Save(wm); err != nil {
			return d.fail(result, err)
		}
		cursor = pageMax
		result.FinalWatermark = wm
		result.TotalRecords += len(records)
		result.PagesProcessed++
		log.Printf("Processed %d records. Watermark advanced to %s.", result.TotalRecords, wm)

		// A short page means the source is exhausted.
		if len(records) < d.opts.PageSize {
			log.Printf("Final page processed.")
			break
		}
	}

	d.state = StateDone
	result.State = StateDone
	log.Printf("Sync complete. Total upserts: %d. Final watermark: %s", result.TotalRecords, result.FinalWatermark)
	return result, nil
}

// loadCursor reads the stored watermark, falling back to the configured
// default when the stored value does not parse.
func (d *Driver) loadCursor() (time.Time, error) {
	raw := d.store.Load()
	if t, err := ParseWatermark(raw); err == nil {
		return t, nil
	}
	log.Printf("Stored watermark %q is unparseable, using default %s", raw, d.opts.DefaultWatermark)
	t, err := ParseWatermark(d.opts.DefaultWatermark)
	if err != nil {
		return time.Time{}, NewError(CodeWatermarkCorrupt,
			fmt.Errorf("default watermark %q: %w", d.opts.DefaultWatermark, err))
	}
	return t, nil
}

func (d *Driver) fail(result *RunResult, err error) (*RunResult, error) {
	d.state = StateFailed
	result.State = StateFailed
	return result, err
}

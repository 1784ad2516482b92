package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"

	"github.com/lox/soilcalc/internal/metrics"
	"github.com/lox/soilcalc/internal/refdata"
	"github.com/lox/soilcalc/internal/store"
)

// FlagUnknownCrop marks a row whose crop has no profile.
const FlagUnknownCrop = "unknown_crop"

// ImportResult summarises one import pass.
type ImportResult struct {
	Files      int
	Duplicates int
	Samples    int
	Rejected   int
}

// Importer moves lab drop files into the sample history.
type Importer struct {
	store  *store.Store
	source Source
	tables *refdata.Tables
	loc    *time.Location
}

func NewImporter(st *store.Store, source Source, tables *refdata.Tables, loc *time.Location) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{store: st, source: source, tables: tables, loc: loc}
}

// ImportOnce imports every pending CSV file. A failing file does not stop
// the others; their errors are returned together.
func (i *Importer) ImportOnce(ctx context.Context) (ImportResult, error) {
	start := time.Now()
	defer func() { metrics.LabImportLatency.Observe(time.Since(start).Seconds()) }()

	var result ImportResult
	files, err := i.source.List(ctx)
	if err != nil {
		metrics.LabImportsTotal.WithLabelValues("list_error").Inc()
		return result, fmt.Errorf("list lab files: %w", err)
	}

	var errs *multierror.Error
	for _, f := range files {
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}
		stored, rejected, dup, err := i.importFile(ctx, f.Name)
		if err != nil {
			metrics.LabImportsTotal.WithLabelValues("error").Inc()
			log.Printf("ingest: %s: %v", f.Name, err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		if dup {
			result.Duplicates++
			metrics.LabImportsTotal.WithLabelValues("duplicate").Inc()
			continue
		}
		result.Files++
		result.Samples += stored
		result.Rejected += rejected
		metrics.LabImportsTotal.WithLabelValues("imported").Inc()
		log.Printf("ingest: %s: stored %d samples, rejected %d", f.Name, stored, rejected)
	}

	return result, errs.ErrorOrNil()
}

func (i *Importer) importFile(ctx context.Context, name string) (stored, rejected int, duplicate bool, err error) {
	payload, err := i.source.Fetch(ctx, name)
	if err != nil {
		return 0, 0, false, err
	}

	hash := store.PayloadHash(payload)
	seen, err := i.store.IsFileImported(name, hash)
	if err != nil {
		return 0, 0, false, fmt.Errorf("check imported: %w", err)
	}
	if seen {
		log.Printf("ingest: %s already imported, skipping", name)
		return 0, 0, true, i.source.MarkProcessed(ctx, name)
	}

	rows, err := ParseCSV(bytes.NewReader(payload), i.loc)
	if err != nil {
		// Unreadable files are recorded so they are not fetched again.
		log.Printf("ingest: %s: %v", name, err)
		metrics.LabRowsRejected.WithLabelValues("unreadable_file").Inc()
		if err := i.store.MarkFileImported(name, payload, 0, 0); err != nil {
			return 0, 0, false, err
		}
		return 0, 0, false, i.source.MarkProcessed(ctx, name)
	}

	reg := i.tables.Units()
	for _, row := range rows {
		if row.Err != nil {
			rejected++
			metrics.LabRowsRejected.WithLabelValues("parse_error").Inc()
			log.Printf("ingest: %s line %d: %v", name, row.Line, row.Err)
			continue
		}

		sample := row.Sample
		flags := ValidateSample(&sample, reg)
		if sample.Crop != "" {
			if _, ok := i.tables.Crop(sample.Crop); !ok {
				flags = append(flags, FlagUnknownCrop)
			}
		}
		if len(flags) > 0 {
			rejected++
			metrics.LabRowsRejected.WithLabelValues(flags[0]).Inc()
			log.Printf("ingest: %s line %d rejected: %v", name, row.Line, flags)
			continue
		}

		sample.Source = "lab:" + name
		if _, err := i.store.InsertSample(sample); err != nil {
			rejected++
			metrics.LabRowsRejected.WithLabelValues("store_error").Inc()
			log.Printf("ingest: %s line %d: %v", name, row.Line, err)
			continue
		}
		stored++
		metrics.SamplesStored.WithLabelValues("lab").Inc()
	}

	if err := i.store.MarkFileImported(name, payload, stored, rejected); err != nil {
		return stored, rejected, false, err
	}
	if err := i.source.MarkProcessed(ctx, name); err != nil {
		log.Printf("ingest: %s: mark processed: %v", name, err)
	}
	return stored, rejected, false, nil
}

// Poller runs the importer on a cron schedule ("@every 15m", "0 6 * * *").
type Poller struct {
	importer *Importer
	schedule string
}

func NewPoller(importer *Importer, schedule string) (*Poller, error) {
	if schedule == "" {
		schedule = "@every 15m"
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	return &Poller{importer: importer, schedule: schedule}, nil
}

// Run imports once immediately, then on schedule until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(p.schedule, func() { p.runOnce(ctx) }); err != nil {
		log.Printf("ingest: poller: %v", err)
		return
	}

	p.runOnce(ctx)
	c.Start()
	log.Printf("ingest: poller started (%s)", p.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	log.Println("ingest: poller stopped")
}

func (p *Poller) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	result, err := p.importer.ImportOnce(ctx)
	if err != nil {
		log.Printf("ingest: import: %v", err)
	}
	if result.Files > 0 {
		log.Printf("ingest: imported %d files, %d samples, %d rejected", result.Files, result.Samples, result.Rejected)
	}
}

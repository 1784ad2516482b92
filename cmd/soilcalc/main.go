package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/soilcalc/internal/api"
	"github.com/lox/soilcalc/internal/chemistry"
	"github.com/lox/soilcalc/internal/ingest"
	"github.com/lox/soilcalc/internal/metrics"
	"github.com/lox/soilcalc/internal/refdata"
	"github.com/lox/soilcalc/internal/store"
)

type Globals struct {
	DB       string `default:"data/soilcalc.db" env:"SOILCALC_DB" help:"Path to SQLite database."`
	RefData  string `name:"refdata" env:"SOILCALC_REFDATA" help:"YAML file overriding built-in crop, clay and fertilizer tables."`
	Timezone string `default:"America/Sao_Paulo" env:"SOILCALC_TZ" help:"Zone sample dates are interpreted in."`
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API and the lab drop poller."`
	Calc    CalcCmd    `cmd:"" help:"Calculate a JSON request file and print the result."`
	Import  ImportCmd  `cmd:"" help:"Import pending lab drop files once and exit."`
	History HistoryCmd `cmd:"" help:"List stored samples with their current status."`
}

// LabDrop selects where lab result files are picked up from.
type LabDrop struct {
	FTPAddr     string `name:"ftp-addr" env:"SOILCALC_FTP_ADDR" help:"Lab FTP server host:port."`
	FTPUser     string `name:"ftp-user" env:"SOILCALC_FTP_USER"`
	FTPPassword string `name:"ftp-password" env:"SOILCALC_FTP_PASSWORD"`
	FTPDir      string `name:"ftp-dir" default:"/" env:"SOILCALC_FTP_DIR"`
	DropDir     string `name:"drop-dir" env:"SOILCALC_DROP_DIR" help:"Local directory to import from instead of FTP."`
}

// source returns nil when no drop is configured.
func (d LabDrop) source() ingest.Source {
	switch {
	case d.DropDir != "":
		return ingest.NewDirSource(d.DropDir)
	case d.FTPAddr != "":
		return ingest.NewFTPSource(ingest.FTPConfig{
			Addr:     d.FTPAddr,
			User:     d.FTPUser,
			Password: d.FTPPassword,
			Dir:      d.FTPDir,
		})
	}
	return nil
}

type ServeCmd struct {
	LabDrop `embed:""`

	Port     string `default:"8080" env:"PORT" help:"HTTP server port."`
	NoPoll   bool   `help:"Disable lab drop polling."`
	Schedule string `default:"@every 15m" env:"SOILCALC_IMPORT_SCHEDULE" help:"Cron schedule for lab drop imports."`
}

func (c *ServeCmd) Run(g *Globals) error {
	env, err := g.open()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src := c.source()
	switch {
	case c.NoPoll:
		log.Println("polling disabled (--no-poll)")
	case src == nil:
		log.Println("no lab drop configured, polling disabled")
	default:
		poller, err := ingest.NewPoller(ingest.NewImporter(env.store, src, env.tables, env.loc), c.Schedule)
		if err != nil {
			return err
		}
		go poller.Run(ctx)
	}

	server := api.NewServer(env.store, env.analyzer, c.Port, env.loc)
	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type CalcCmd struct {
	File string `arg:"" optional:"" default:"-" help:"JSON request file, or - for stdin."`
}

func (c *CalcCmd) Run(g *Globals) error {
	tables, err := refdata.Load(g.RefData)
	if err != nil {
		return err
	}
	loc := g.location()

	var r io.Reader = os.Stdin
	if c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	sample, err := api.ParseCalculateRequest(r, loc)
	if err != nil {
		return err
	}
	analyzer := chemistry.NewAnalyzer(tables, chemistry.WithUnitObserver(metrics.UnitFallbackObserver{}))
	analysis, err := analyzer.Analyze(sample, nil)
	if err != nil {
		return err
	}
	flags := ingest.ValidateSample(&sample, tables.Units())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(api.NewAnalysisJSON(analysis, tables.Units().Nutrients(), flags))
}

type ImportCmd struct {
	LabDrop `embed:""`
}

func (c *ImportCmd) Run(g *Globals) error {
	src := c.source()
	if src == nil {
		return fmt.Errorf("no lab drop configured: set --drop-dir or --ftp-addr")
	}

	env, err := g.open()
	if err != nil {
		return err
	}
	defer env.Close()

	log.Println("running single import")
	result, err := ingest.NewImporter(env.store, src, env.tables, env.loc).ImportOnce(context.Background())
	log.Printf("imported %d files, %d samples, %d rejected, %d duplicates",
		result.Files, result.Samples, result.Rejected, result.Duplicates)
	return err
}

type HistoryCmd struct {
	Location string `help:"Only samples from this location."`
	Crop     string `help:"Only samples for this crop."`
	Limit    int    `default:"20" help:"Maximum samples to list."`
}

func (c *HistoryCmd) Run(g *Globals) error {
	env, err := g.open()
	if err != nil {
		return err
	}
	defer env.Close()

	filter := store.SampleFilter{Location: c.Location, Limit: c.Limit}
	if c.Crop != "" {
		filter.Crops = env.tables.CropNames(c.Crop)
	}
	samples, err := env.store.ListSamples(filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSAMPLED\tLOCATION\tCROP\tSTATUS\tSOURCE")
	for _, s := range samples {
		var status string
		if a, err := env.analyzer.Analyze(s, nil); err != nil {
			status = err.Error()
		} else {
			status = string(a.Result.Status)
		}
		sampled := "-"
		if !s.SampledAt.IsZero() {
			sampled = s.SampledAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, sampled, s.Location, s.Crop, status, s.Source)
	}
	return w.Flush()
}

type appEnv struct {
	db       *sql.DB
	store    *store.Store
	tables   *refdata.Tables
	analyzer *chemistry.Analyzer
	loc      *time.Location
}

func (e *appEnv) Close() error {
	return e.db.Close()
}

func (g *Globals) location() *time.Location {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", g.Timezone, err)
		return time.UTC
	}
	return loc
}

func (g *Globals) open() (*appEnv, error) {
	tables, err := refdata.Load(g.RefData)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(g.DB), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	loc := g.location()
	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Println("database migrated")

	return &appEnv{
		db:       db,
		store:    st,
		tables:   tables,
		analyzer: chemistry.NewAnalyzer(tables, chemistry.WithUnitObserver(metrics.UnitFallbackObserver{})),
		loc:      loc,
	}, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("soilcalc"),
		kong.Description("Soil chemistry calculations, sample history and lab imports."),
		kong.UsageOnError(),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"
)

// LabFile is a result file waiting in a lab drop.
type LabFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Source is a place labs drop result files.
type Source interface {
	List(ctx context.Context) ([]LabFile, error)
	Fetch(ctx context.Context, name string) ([]byte, error)
	// MarkProcessed moves name out of the pending listing.
	MarkProcessed(ctx context.Context, name string) error
}

func isCSV(name string) bool {
	return strings.EqualFold(path.Ext(name), ".csv")
}

func sortFiles(files []LabFile) {
	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.Before(files[j].ModTime)
		}
		return files[i].Name < files[j].Name
	})
}

// FTPConfig describes a lab's FTP drop.
type FTPConfig struct {
	Addr         string // host:port
	User         string
	Password     string
	Dir          string
	ProcessedDir string // defaults to Dir/processed
	Timeout      time.Duration
	MaxElapsed   time.Duration
}

// FTPSource reads lab files over FTP. Every call opens its own connection.
type FTPSource struct {
	cfg FTPConfig
}

func NewFTPSource(cfg FTPConfig) *FTPSource {
	if cfg.User == "" {
		cfg.User = "anonymous"
		cfg.Password = "anonymous"
	}
	if cfg.Dir == "" {
		cfg.Dir = "/"
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = path.Join(cfg.Dir, "processed")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 2 * time.Minute
	}
	return &FTPSource{cfg: cfg}
}

func (f *FTPSource) List(ctx context.Context) ([]LabFile, error) {
	var files []LabFile
	err := f.withConn(ctx, func(conn *ftp.ServerConn) error {
		entries, err := conn.List(f.cfg.Dir)
		if err != nil {
			return fmt.Errorf("ftp list: %w", err)
		}
		files = files[:0]
		for _, e := range entries {
			if e.Type != ftp.EntryTypeFile || !isCSV(e.Name) {
				continue
			}
			files = append(files, LabFile{Name: e.Name, Size: int64(e.Size), ModTime: e.Time})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortFiles(files)
	return files, nil
}

func (f *FTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := f.withConn(ctx, func(conn *ftp.ServerConn) error {
		resp, err := conn.Retr(path.Join(f.cfg.Dir, name))
		if err != nil {
			return fmt.Errorf("ftp retr %s: %w", name, err)
		}
		defer resp.Close()

		body, err = io.ReadAll(resp)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		return nil
	})
	return body, err
}

func (f *FTPSource) MarkProcessed(ctx context.Context, name string) error {
	return f.withConn(ctx, func(conn *ftp.ServerConn) error {
		// fails harmlessly when the directory exists
		_ = conn.MakeDir(f.cfg.ProcessedDir)
		from := path.Join(f.cfg.Dir, name)
		to := path.Join(f.cfg.ProcessedDir, name)
		if err := conn.Rename(from, to); err != nil {
			return backoff.Permanent(fmt.Errorf("ftp rename %s: %w", name, err))
		}
		return nil
	})
}

// withConn dials, logs in and runs fn, retrying the whole sequence with
// exponential backoff. fn can stop the retries with backoff.Permanent.
func (f *FTPSource) withConn(ctx context.Context, fn func(*ftp.ServerConn) error) error {
	operation := func() error {
		conn, err := ftp.Dial(f.cfg.Addr, ftp.DialWithTimeout(f.cfg.Timeout), ftp.DialWithContext(ctx))
		if err != nil {
			return fmt.Errorf("ftp dial: %w", err)
		}
		defer conn.Quit()

		if err := conn.Login(f.cfg.User, f.cfg.Password); err != nil {
			return fmt.Errorf("ftp login: %w", err)
		}
		return fn(conn)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = f.cfg.MaxElapsed
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// DirSource reads lab files from a local directory, such as a mounted share.
// Processed files are moved to a "processed" subdirectory.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (d *DirSource) List(ctx context.Context) ([]LabFile, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var files []LabFile
	for _, e := range entries {
		if e.IsDir() || !isCSV(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		files = append(files, LabFile{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sortFiles(files)
	return files, nil
}

func (d *DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.dir, filepath.Base(name)))
}

func (d *DirSource) MarkProcessed(ctx context.Context, name string) error {
	processed := filepath.Join(d.dir, "processed")
	if err := os.MkdirAll(processed, 0o755); err != nil {
		return err
	}
	name = filepath.Base(name)
	return os.Rename(filepath.Join(d.dir, name), filepath.Join(processed, name))
}

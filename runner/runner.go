// Package runner decompresses batches of gzip files with a pool of workers,
// recording finished files in a checkpoint so an interrupted run can resume.
package runner

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/ripgzip/checkpoint"
	"github.com/dselans/ripgzip/checkpoint/types"
	"github.com/dselans/ripgzip/config"
	"github.com/dselans/ripgzip/decompress"
)

// Job is a single source file to decompress.
type Job struct {
	ID     int
	Path   string
	Output string
	Info   os.FileInfo
}

// Result is what a worker (or the reader, for rejected paths) reports for a
// job.
type Result struct {
	Job     *Job
	Stats   *decompress.Stats
	Skipped bool
	Err     error
}

type Options struct {
	// Store overrides the checkpoint store picked from the config.
	Store checkpoint.Store

	// Stdout receives decompressed data with --stdout and in Stream.
	Stdout io.Writer
}

// Summary totals a finished run.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
	Written   int64
}

type Runner struct {
	cfg          *config.Config
	cmd          *config.DecompressCmd
	log          *logrus.Entry
	store        checkpoint.Store
	cp           *types.Checkpoint
	decompressor *decompress.Decompressor
	stdout       io.Writer
	numWorkers   int
	last         time.Time
	summary      Summary
}

func New(cfg *config.Config, opts *Options) (*Runner, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "error validating config")
	}

	if opts == nil {
		opts = &Options{}
	}

	r := &Runner{
		cfg:    cfg,
		cmd:    &cfg.CLI.Decompress,
		log:    logrus.WithField("pkg", "runner"),
		stdout: opts.Stdout,
		decompressor: decompress.New(&decompress.Options{
			BufferSize: cfg.TOML.Config.BufferSize,
			Logger:     logrus.WithField("pkg", "decompress"),
		}),
		numWorkers: cfg.TOML.Config.NumWorkers,
	}

	if r.stdout == nil {
		r.stdout = os.Stdout
	}

	// Output order matters when everything goes to one stream.
	if r.cmd.Stdout {
		r.numWorkers = 1
	}

	store := opts.Store
	if store == nil {
		if !r.cmd.WritesFiles() {
			store = &checkpoint.NoopStore{}
		} else {
			var err error

			store, err = checkpoint.New(cfg)
			if err != nil {
				return nil, errors.Wrap(err, "unable to create checkpoint store")
			}
		}
	}

	if r.cmd.DisableResume {
		if err := store.Clear(); err != nil {
			return nil, errors.Wrap(err, "unable to clear checkpoint")
		}
	}

	cp, err := store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "unable to load checkpoint")
	}

	r.store = store
	r.cp = cp

	return r, nil
}

// Stream decompresses a single gzip stream from in to out.
func (r *Runner) Stream(in io.Reader, out io.Writer) error {
	llog := r.log.WithFields(logrus.Fields{
		"method": "Stream",
	})

	llog.Debug("start")
	defer llog.Debug("exit")

	if r.cmd.Test {
		out = io.Discard
	}

	stats, err := r.decompressor.Decompress(in, out)
	if err != nil {
		return errors.Wrap(err, "unable to decompress stream")
	}

	llog.Debugf("decompressed %d member(s), %d byte(s)", len(stats.Members), stats.Size)

	return nil
}

// Run decompresses files. It returns every per-file error, combined, once all
// workers have stopped.
func (r *Runner) Run(ctx context.Context, files []string) (*Summary, error) {
	wg := &sync.WaitGroup{}
	jobCh := make(chan *Job, r.numWorkers)
	resultCh := make(chan *Result, r.numWorkers)

	// Launch workers
	for i := 0; i < r.numWorkers; i++ {
		wg.Add(1)

		go func(id int) {
			defer wg.Done()
			r.runWorker(ctx, id, jobCh, resultCh)
		}(i)
	}

	// Launch reader
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer close(jobCh)

		r.runReader(ctx, files, jobCh, resultCh)
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	errs := r.runCheckpointer(resultCh)

	if err := r.saveCheckpoint(true); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := r.store.Close(); err != nil {
		errs = multierror.Append(errs, errors.Wrap(err, "unable to close checkpoint store"))
	}

	if ctx.Err() != nil {
		errs = multierror.Append(errs, errors.Wrap(ctx.Err(), "run interrupted"))
	}

	summary := r.summary

	return &summary, errs.ErrorOrNil()
}

package runner

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/ripgzip/decompress"
)

func (r *Runner) runWorker(ctx context.Context, id int, jobCh <-chan *Job, resultCh chan<- *Result) {
	llog := r.log.WithFields(logrus.Fields{
		"method": "runWorker",
		"id":     id,
	})

	llog.Debug("start")
	defer llog.Debug("exit")

	var numProcessed int

MAIN:
	for {
		select {
		case <-ctx.Done():
			llog.Debug("received shutdown signal")
			break MAIN
		case job, open := <-jobCh:
			if !open {
				llog.Debug("job channel closed - exiting worker")
				break MAIN
			}

			llog.Debugf("received job '%s'", job.Path)

			result := r.processJob(job)

			// Always deliver, the checkpointer drains until every worker exits.
			resultCh <- result

			numProcessed++
		}
	}

	llog.Debugf("handled '%d' jobs", numProcessed)
}

func (r *Runner) processJob(job *Job) *Result {
	result := &Result{Job: job}

	switch {
	case r.cmd.DryRun:
		r.log.Infof("dry-run: would decompress '%s' to '%s'", job.Path, r.target(job))
		result.Skipped = true
	case r.cmd.Test:
		result.Stats, result.Err = r.decompressTo(job, io.Discard)
	case r.cmd.Stdout:
		result.Stats, result.Err = r.decompressTo(job, r.stdout)
	default:
		result.Stats, result.Err = r.decompressFile(job)
	}

	return result
}

func (r *Runner) target(job *Job) string {
	switch {
	case r.cmd.Test:
		return "<test>"
	case r.cmd.Stdout:
		return "<stdout>"
	}

	return job.Output
}

func (r *Runner) decompressTo(job *Job, out io.Writer) (*decompress.Stats, error) {
	f, err := os.Open(job.Path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open source")
	}
	defer f.Close()

	return r.decompressor.Decompress(f, out)
}

// decompressFile writes to a temp file next to the output and renames it into
// place only once every member has been verified.
func (r *Runner) decompressFile(job *Job) (*decompress.Stats, error) {
	if _, err := os.Lstat(job.Output); err == nil && !r.cmd.Force {
		return nil, errors.Errorf("output '%s' already exists", job.Output)
	}

	tmp, err := os.CreateTemp(filepath.Dir(job.Output), "."+filepath.Base(job.Output)+".ripgzip-*")
	if err != nil {
		return nil, errors.Wrap(err, "unable to create temp output")
	}

	stats, err := r.decompressTo(job, tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return stats, err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return stats, errors.Wrap(err, "unable to close temp output")
	}

	if err := os.Chmod(tmp.Name(), job.Info.Mode().Perm()); err != nil {
		os.Remove(tmp.Name())
		return stats, errors.Wrap(err, "unable to set output permissions")
	}

	if err := os.Chtimes(tmp.Name(), job.Info.ModTime(), job.Info.ModTime()); err != nil {
		os.Remove(tmp.Name())
		return stats, errors.Wrap(err, "unable to set output times")
	}

	if err := os.Rename(tmp.Name(), job.Output); err != nil {
		os.Remove(tmp.Name())
		return stats, errors.Wrap(err, "unable to move output into place")
	}

	if r.cmd.Delete {
		if err := os.Remove(job.Path); err != nil {
			return stats, errors.Wrap(err, "unable to remove source")
		}
	}

	return stats, nil
}

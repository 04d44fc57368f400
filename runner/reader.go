package runner

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// runReader turns the file list into jobs. Paths that cannot be decompressed
// go straight to resultCh as failures; files the checkpoint already covers
// are reported as skipped.
func (r *Runner) runReader(ctx context.Context, files []string, jobCh chan<- *Job, resultCh chan<- *Result) {
	llog := r.log.WithFields(logrus.Fields{
		"method": "runReader",
	})

	llog.Debug("start")
	defer llog.Debug("exit")

	numSent := 0

MAIN:
	for id, path := range files {
		job, err := r.newJob(id, path)

		var result *Result

		switch {
		case err != nil:
			result = &Result{Job: &Job{ID: id, Path: path}, Err: err}
		case r.cmd.WritesFiles() && r.cp.IsDone(job.Path, job.Info.Size(), job.Info.ModTime()):
			llog.Debugf("'%s' already completed, skipping", path)
			result = &Result{Job: job, Skipped: true}
		}

		if result != nil {
			select {
			case <-ctx.Done():
				llog.Debug("received shutdown signal")
				break MAIN
			case resultCh <- result:
			}

			continue
		}

		select {
		case <-ctx.Done():
			llog.Debug("received shutdown signal")
			break MAIN
		case jobCh <- job:
			numSent++
		}
	}

	llog.Debugf("sent '%d' jobs", numSent)
}

func (r *Runner) newJob(id int, path string) (*Job, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to stat source")
	}

	if info.IsDir() {
		return nil, errors.New("source is a directory")
	}

	job := &Job{
		ID:   id,
		Path: path,
		Info: info,
	}

	if !r.cmd.WritesFiles() {
		return job, nil
	}

	if !strings.HasSuffix(path, r.cmd.Suffix) || len(path) == len(r.cmd.Suffix) {
		return nil, errors.Errorf("unknown suffix, expected '%s'", r.cmd.Suffix)
	}

	job.Output = strings.TrimSuffix(path, r.cmd.Suffix)

	return job, nil
}

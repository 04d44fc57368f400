package runner

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/ripgzip/checkpoint/types"
)

// runCheckpointer consumes results until resultCh is closed, recording
// completed files and collecting failures.
func (r *Runner) runCheckpointer(resultCh <-chan *Result) *multierror.Error {
	llog := r.log.WithFields(logrus.Fields{
		"method": "runCheckpointer",
	})

	llog.Debug("start")
	defer llog.Debug("exit")

	var errs *multierror.Error

	for res := range resultCh {
		switch {
		case res.Err != nil:
			llog.Debugf("'%s' failed: %v", res.Job.Path, res.Err)
			r.summary.Failed++
			errs = multierror.Append(errs, errors.Wrapf(res.Err, "%s", res.Job.Path))

			continue
		case res.Skipped:
			r.summary.Skipped++
			continue
		}

		r.summary.Completed++

		if res.Stats != nil {
			r.summary.Written += res.Stats.Size
		}

		if !r.cmd.WritesFiles() {
			continue
		}

		entry := &types.Entry{
			Path:    res.Job.Path,
			Size:    res.Job.Info.Size(),
			ModTime: res.Job.Info.ModTime(),
			Output:  res.Job.Output,
		}

		if res.Stats != nil {
			entry.Members = len(res.Stats.Members)
			entry.Written = res.Stats.Size
		}

		r.cp.MarkDone(entry)

		if err := r.saveCheckpoint(false); err != nil {
			llog.Errorf("error saving checkpoint after '%s': %v", res.Job.Path, err)
		}
	}

	return errs
}

// saveCheckpoint persists the checkpoint at most once per checkpoint_interval
// unless force is set.
func (r *Runner) saveCheckpoint(force bool) error {
	llog := r.log.WithFields(logrus.Fields{
		"method": "saveCheckpoint",
	})

	interval := time.Duration(r.cfg.TOML.Config.CheckpointInterval)

	if !force && !r.last.IsZero() && r.last.Add(interval).After(time.Now()) {
		llog.Debugf("skipping checkpoint save, last save was %v ago", time.Since(r.last))
		return nil
	}

	llog.Debugf("saving checkpoint with '%d' completed file(s)", r.cp.Len())

	if err := r.store.Save(r.cp); err != nil {
		return errors.Wrap(err, "unable to save checkpoint")
	}

	r.last = time.Now()

	return nil
}

package rankmaniac

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Upload replaces the tenant namespace with the regular files directly
// inside dir. Subdirectories are not scanned. Upload removes all previous
// results of the tenant, so it fails while a job flow is running.
func (o *Orchestrator) Upload(ctx context.Context, dir string) error {
	const op = "upload"
	if o.job.running() {
		return preconditionf(op, "job %s is already running", o.job.id)
	}

	if err := o.poller.deleteByPrefix(ctx, ""); err != nil {
		return classify(op, err)
	}

	entries, err := afero.ReadDir(o.config.fs, dir)
	if err != nil {
		return err
	}

	var written int64
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(o.config.MaxConcurrency))
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		name := entry.Name()
		size := entry.Size()
		g.Go(func() error {
			defer sem.Release(1)
			f, err := o.config.fs.Open(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			defer f.Close()

			if err := o.store.Upload(gctx, o.poller.key(name), f); err != nil {
				return classify(op, err)
			}
			atomic.AddInt64(&written, size)
			o.log.Debugf("Uploaded %s", name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	o.log.Infof("Uploaded %s from %s", humanize.Bytes(uint64(written)), dir)
	return nil
}

// Download copies every object of the tenant namespace into dir, keeping
// the key layout below the tenant prefix.
func (o *Orchestrator) Download(ctx context.Context, dir string) error {
	const op = "download"
	objects, err := o.store.ListByPrefix(ctx, o.poller.key(""))
	if err != nil {
		return classify(op, err)
	}

	prefix := o.poller.key("")
	var read int64
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(o.config.MaxConcurrency))
	for _, object := range objects {
		// skip folder markers such as 'x_$folder$' and 'x/'
		if strings.Contains(object.Key, "$") || strings.HasSuffix(object.Key, "/") {
			continue
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		key := object.Key
		g.Go(func() error {
			defer sem.Release(1)
			local := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(key, prefix)))
			if err := o.config.fs.MkdirAll(filepath.Dir(local), 0755); err != nil {
				return err
			}
			f, err := o.config.fs.OpenFile(local, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := o.store.Download(gctx, key, f)
			if err != nil {
				return classify(op, err)
			}
			atomic.AddInt64(&read, n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	o.log.Infof("Downloaded %s into %s", humanize.Bytes(uint64(read)), dir)
	return nil
}

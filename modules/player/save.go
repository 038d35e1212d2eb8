package player

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/pacecast/pacecast/pkg/fetch"
)

// progressLogInterval throttles bulk-save progress logging; the callback
// fires on every read.
const progressLogInterval = time.Second

func (p *Player) save(ctx context.Context) error {
	bulk := fetch.NewBulkFetcher(p.logger, p.metrics, p.cfg.BulkChunkSize, p.cfg.EndTolerance)
	cancels := fetch.NewCancelSet()

	go func() {
		<-ctx.Done()
		cancels.Add(p.source.ID())
	}()

	lastLogged := time.Now()
	progress := func(fetched, total int64, phase string) {
		if phase != fetch.PhaseDownloading || time.Since(lastLogged) >= progressLogInterval {
			p.logger.Info("fetch progress", "phase", phase, "fetched", fetched, "total", total)
			lastLogged = time.Now()
		}
	}

	data, err := bulk.Fetch(p.source, cancels, progress)
	if errors.Is(err, fetch.ErrFetchInterrupted) {
		p.logger.Info("fetch cancelled")
		return nil
	}
	if err != nil {
		return err
	}

	if err := p.commit(data); err != nil {
		return err
	}
	p.logger.Info("saved media", "path", p.cfg.Output, "bytes", len(data))
	return nil
}

// commit writes data through a temp file and renames it into place so a
// crash mid-write never clobbers an existing good copy.
func (p *Player) commit(data []byte) error {
	dir := path.Dir(p.cfg.Output)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	f, err := os.CreateTemp(dir, "*.ogg.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tempPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "writing temp file")
	}
	if err := f.Sync(); err != nil {
		p.logger.Error("error syncing file", "err", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "closing temp file")
	}

	return p.commitTempFile(tempPath, p.cfg.Output)
}

// commitTempFile renames tempPath to destPath only if dest doesn't exist or
// the temp file is larger (so a previous crash doesn't overwrite a good
// copy).
func (p *Player) commitTempFile(tempPath, destPath string) error {
	tempInfo, err := os.Stat(tempPath)
	if err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "stating temp file")
	}
	destInfo, err := os.Stat(destPath)
	if err != nil {
		if !os.IsNotExist(err) {
			_ = os.Remove(tempPath)
			return errors.Wrap(err, "stating dest file")
		}
		// Dest doesn't exist; use the temp file.
		if err := os.Rename(tempPath, destPath); err != nil {
			_ = os.Remove(tempPath)
			return errors.Wrap(err, "renaming temp to dest")
		}
		return nil
	}
	if tempInfo.Size() > destInfo.Size() {
		if err := os.Rename(tempPath, destPath); err != nil {
			_ = os.Remove(tempPath)
			return errors.Wrap(err, "renaming temp to dest")
		}
		p.logger.Debug("overwrote with larger copy", "path", destPath, "size", tempInfo.Size())
		return nil
	}
	_ = os.Remove(tempPath)
	p.logger.Debug("kept existing larger copy", "path", destPath, "temp_size", tempInfo.Size(), "existing_size", destInfo.Size())
	return nil
}

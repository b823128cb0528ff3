package preview

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/llehouerou/ptui/internal/decode"
	"github.com/llehouerou/ptui/internal/errmsg"
	"github.com/llehouerou/ptui/internal/logging"
	"github.com/llehouerou/ptui/internal/render"
)

// produce decodes and renders one job. Errors and panics become a
// placeholder entry plus the error; they never escape the worker.
func (s *Scheduler) produce(job *Job) (entry *Entry, err error) {
	req := job.req
	defer func() {
		if r := recover(); r != nil {
			logging.Error("preview: panic rendering %s: %v\n%s", req.Path, r, debug.Stack())
			err = fmt.Errorf("render %s: panic: %v", filepath.Base(req.Path), r)
			entry = failureEntry(req, err)
		}
	}()

	start := time.Now()
	chain := s.chains(job.snap.Config.Converter)
	boxW, boxH := chain.TargetPixels(req.Cols, req.Rows)

	img, err := s.dec.Decode(s.ctx, req.Path, boxW, boxH)
	if err != nil {
		logging.Warn("preview: decode %s: %v", filepath.Base(req.Path), err)
		return failureEntry(req, err), err
	}

	art, err := chain.Render(img.Pixels, req.Cols, req.Rows)
	if err != nil {
		logging.Warn("preview: render %s: %v", filepath.Base(req.Path), err)
		return failureEntry(req, err), err
	}

	entry = &Entry{
		Payload:       art.Payload,
		DecodedWidth:  img.Width,
		DecodedHeight: img.Height,
		Decoder:       img.Decoder,
		Backend:       art.Backend,
		Requested:     art.Requested,
		Cols:          art.Cols,
		Rows:          art.Rows,
		CreatedAt:     time.Now(),
		SizeBytes:     int64(len(art.Payload)),
	}
	logging.Debug("preview: %s %dx%d via %s at %s, %s as %s in %s",
		filepath.Base(req.Path), img.Width, img.Height, img.Decoder, img.Scale,
		humanize.IBytes(uint64(entry.SizeBytes)), art.Backend, time.Since(start))
	return entry, nil
}

// failureEntry renders a framed message in place of a preview.
func failureEntry(req Request, err error) *Entry {
	op := errmsg.OpImageRender
	var derr *decode.Error
	if errors.As(err, &derr) {
		op = errmsg.OpImageDecode
		if derr.Kind == decode.IoError {
			op = errmsg.OpImageStat
		}
	}
	msg := errmsg.Format(op, err)

	payload := render.Placeholder(req.Cols, req.Rows, msg)
	cols, rows := req.Cols, req.Rows
	if payload == "" {
		payload = msg
		cols, rows = runewidth.StringWidth(msg), 1
	}
	return &Entry{
		Payload:     []byte(payload),
		Backend:     render.BackendANSI,
		Requested:   render.BackendANSI,
		Cols:        cols,
		Rows:        rows,
		CreatedAt:   time.Now(),
		SizeBytes:   int64(len(payload)),
		Placeholder: true,
	}
}

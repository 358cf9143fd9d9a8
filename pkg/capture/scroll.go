package capture

import (
	"context"
	"fmt"
)

// CaptureAll scrolls through the loaded page one viewport height at a
// time and saves a screenshot per step. The page height is re-measured
// after each step and may only grow the loop bound. A failed step is
// logged and skipped; indices stay contiguous over the saved segments.
// At least one segment is always attempted.
func (c *Capturer) CaptureAll(ctx context.Context, sess Session, url string) ([]Artifact, error) {
	log := c.log.With("url", url)

	height, err := sess.Height(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("page measured", "height", height)

	step := c.opts.ViewportHeight
	var artifacts []Artifact
	index, steps := 0, 0

	for offset := 0; offset == 0 || offset < height; offset += step {
		if c.opts.MaxSegments > 0 && steps >= c.opts.MaxSegments {
			log.Warn("segment limit reached", "limit", c.opts.MaxSegments, "height", height)
			break
		}
		steps++

		if err := contextErr(ctx, "capture"); err != nil {
			return nil, err
		}

		path, err := c.store.SegmentPath(url, index)
		if err != nil {
			return nil, NewError(KindOther, "segment path", url, err)
		}

		a, err := c.captureSegment(ctx, sess, path, offset, index)
		if err != nil {
			if cerr := contextErr(ctx, "capture"); cerr != nil {
				return nil, cerr
			}
			log.Warn("segment skipped", "offset", offset, "index", index, "error", err)
		} else {
			artifacts = append(artifacts, a)
			index++
			log.Debug("segment saved", "path", a.Path, "offset", offset, "bytes", a.Bytes)
		}

		h, err := sess.Height(ctx)
		switch {
		case err != nil:
			log.Warn("height re-measure failed", "error", err)
		case h > height:
			log.Info("page grew", "from", height, "to", h)
			height = h
		}
	}

	if len(artifacts) == 0 {
		return nil, NewError(KindSession, "capture", url, ErrNoSegments)
	}
	log.Info("segments captured", "count", len(artifacts), "steps", steps, "height", height)
	return artifacts, nil
}

func (c *Capturer) captureSegment(ctx context.Context, sess Session, path string, offset, index int) (Artifact, error) {
	if err := sess.ScrollTo(ctx, offset); err != nil {
		return Artifact{}, fmt.Errorf("scroll: %w", err)
	}
	if err := c.pause(ctx, "scroll settle", c.opts.ScrollPause); err != nil {
		return Artifact{}, err
	}
	data, err := sess.Screenshot(ctx)
	if err != nil {
		return Artifact{}, fmt.Errorf("screenshot: %w", err)
	}
	if err := c.store.WriteFile(path, data); err != nil {
		return Artifact{}, fmt.Errorf("write %s: %w", path, err)
	}
	return Artifact{Path: path, Offset: offset, Index: index, Bytes: len(data)}, nil
}

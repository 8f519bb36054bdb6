// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/chatdeck/internal/model"
)

// MaxParallelUploads bounds concurrent uploads in UploadAll.
const MaxParallelUploads = 4

// ErrNoUploader is returned when files are attached but no uploader is configured.
var ErrNoUploader = errors.New("file uploads are not configured")

// UploadAll validates every file against limits, then uploads them
// concurrently. Attachments are returned in input order once all uploads
// finish. The first failure cancels the remaining uploads.
func UploadAll(ctx context.Context, up Uploader, files []File, limits Limits) ([]model.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if up == nil {
		return nil, ErrNoUploader
	}
	for _, f := range files {
		if err := limits.Validate(f); err != nil {
			return nil, err
		}
	}

	out := make([]model.Attachment, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxParallelUploads)
	for i, f := range files {
		g.Go(func() error {
			att, err := up.Upload(gctx, f)
			if err != nil {
				return err
			}
			out[i] = att
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

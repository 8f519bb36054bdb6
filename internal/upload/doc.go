// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upload validates files and uploads them, producing the
// model.Attachment descriptors that messages reference.
//
// Two Uploader implementations exist: HTTPUploader posts a multipart form to
// an upload endpoint, ObjectUploader stores the file in an S3-compatible
// bucket and returns a presigned URL. UploadAll validates a batch up front
// and then uploads the files concurrently.
package upload

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// MinS3PartSize is the smallest part S3 accepts in a multipart upload
// (except the last one).
const MinS3PartSize = 5 << 20

// ErrNoChunkedTransfer is returned for chunk operations without StartChunked.
var ErrNoChunkedTransfer = errors.New("cloud: no chunked transfer in progress")

// s3API is the slice of the S3 client the uploader needs.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, opts ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Uploader writes objects to Amazon S3. Chunked transfers become multipart
// uploads; HTTP chunks are buffered until a part reaches MinS3PartSize.
type S3Uploader struct {
	loc    Location
	client s3API

	key      string
	uploadID *string
	parts    []types.CompletedPart
	buf      bytes.Buffer
}

// NewS3Uploader creates a client from the default AWS credential chain with
// the standard retry mode.
func NewS3Uploader(ctx context.Context, loc Location) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMode(aws.RetryModeStandard))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return newS3Uploader(loc, s3.NewFromConfig(cfg)), nil
}

func newS3Uploader(loc Location, client s3API) *S3Uploader {
	return &S3Uploader{loc: loc, client: client}
}

func (u *S3Uploader) WriteNonChunked(ctx context.Context, path string, data []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.loc.Bucket),
		Key:          aws.String(u.loc.Key(path)),
		Body:         bytes.NewReader(data),
		CacheControl: aws.String(cacheControlNoCache),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", path, err)
	}
	return nil
}

func (u *S3Uploader) StartChunked(ctx context.Context, path string) error {
	u.Reset()
	key := u.loc.Key(path)
	out, err := u.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:       aws.String(u.loc.Bucket),
		Key:          aws.String(key),
		CacheControl: aws.String(cacheControlNoCache),
	})
	if err != nil {
		return fmt.Errorf("s3 create multipart %s: %w", path, err)
	}
	u.key = key
	u.uploadID = out.UploadId
	return nil
}

func (u *S3Uploader) WriteChunk(ctx context.Context, data []byte) error {
	if u.uploadID == nil {
		return ErrNoChunkedTransfer
	}
	u.buf.Write(data)
	if u.buf.Len() >= MinS3PartSize {
		return u.flush(ctx)
	}
	return nil
}

func (u *S3Uploader) flush(ctx context.Context) error {
	if u.buf.Len() == 0 {
		return nil
	}
	partNumber := aws.Int32(int32(len(u.parts) + 1))
	out, err := u.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(u.loc.Bucket),
		Key:        aws.String(u.key),
		UploadId:   u.uploadID,
		PartNumber: partNumber,
		Body:       bytes.NewReader(u.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("s3 upload part %d of %s: %w", *partNumber, u.key, err)
	}
	u.parts = append(u.parts, types.CompletedPart{ETag: out.ETag, PartNumber: partNumber})
	u.buf.Reset()
	return nil
}

// EndChunked uploads the buffered tail and completes the multipart upload.
// A transfer that produced no bytes is written as an empty object, since
// S3 rejects completing an upload with zero parts.
func (u *S3Uploader) EndChunked(ctx context.Context) error {
	if u.uploadID == nil {
		return ErrNoChunkedTransfer
	}
	if err := u.flush(ctx); err != nil {
		return err
	}

	if len(u.parts) == 0 {
		key := u.key
		u.Reset()
		_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:       aws.String(u.loc.Bucket),
			Key:          aws.String(key),
			Body:         bytes.NewReader(nil),
			CacheControl: aws.String(cacheControlNoCache),
		})
		if err != nil {
			return fmt.Errorf("s3 put empty %s: %w", key, err)
		}
		return nil
	}

	_, err := u.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(u.loc.Bucket),
		Key:             aws.String(u.key),
		UploadId:        u.uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: u.parts},
	})
	if err != nil {
		return fmt.Errorf("s3 complete multipart %s: %w", u.key, err)
	}
	u.clear()
	return nil
}

// Delete removes an object. A missing object counts as deleted.
func (u *S3Uploader) Delete(ctx context.Context, path string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.loc.Bucket),
		Key:    aws.String(u.loc.Key(path)),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("s3 delete %s: %w", path, err)
	}
	return nil
}

// Reset aborts an open multipart upload (best effort) and clears state.
func (u *S3Uploader) Reset() {
	if u.uploadID != nil {
		_, _ = u.client.AbortMultipartUpload(context.Background(), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(u.loc.Bucket),
			Key:      aws.String(u.key),
			UploadId: u.uploadID,
		})
	}
	u.clear()
}

func (u *S3Uploader) clear() {
	u.key = ""
	u.uploadID = nil
	u.parts = nil
	u.buf.Reset()
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

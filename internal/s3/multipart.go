package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	MinPartSizeMB    = 5
	MinPartSizeBytes = MinPartSizeMB * 1024 * 1024
	MaxParts         = 10000
)

type CompletedPart struct {
	PartNumber int32
	ETag       string
}

func (c *Client) CreateMultipartUpload(ctx context.Context, key string, opts PutOptions) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.Key(key)),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ServerSideEncryption != "" {
		input.ServerSideEncryption = types.ServerSideEncryption(opts.ServerSideEncryption)
	}
	out, err := c.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("create multipart upload: %w", translate(err))
	}
	return aws.ToString(out.UploadId), nil
}

// UploadPart sends one part. contentMD5 is the base64 digest of body and is
// checked by the server.
func (c *Client) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64, contentMD5 string) (string, error) {
	input := &s3.UploadPartInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(c.Key(key)),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentMD5 != "" {
		input.ContentMD5 = aws.String(contentMD5)
	}
	out, err := c.client.UploadPart(ctx, input)
	if err != nil {
		return "", fmt.Errorf("upload part %d: %w", partNumber, translate(err))
	}
	return TrimETag(aws.ToString(out.ETag)), nil
}

func (c *Client) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart, ifNoneMatch bool) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("no parts uploaded")
	}
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(QuoteETag(p.ETag)),
			PartNumber: aws.Int32(p.PartNumber),
		})
	}
	input := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(c.Key(key)),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	}
	if ifNoneMatch {
		input.IfNoneMatch = aws.String("*")
	}
	out, err := c.client.CompleteMultipartUpload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("complete multipart upload: %w", translate(err))
	}
	return TrimETag(aws.ToString(out.ETag)), nil
}

func (c *Client) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := c.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(c.Key(key)),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload: %w", translate(err))
	}
	return nil
}

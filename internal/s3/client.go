package s3

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Options struct {
	Endpoint                string
	Region                  string
	AccessKey               string
	SecretKey               string
	Bucket                  string
	Prefix                  string
	PathStyle               bool
	DisableRequestChecksums bool
	InsecureSkipVerify      bool
}

type Client struct {
	client *s3.Client
	bucket string
	prefix string
}

// ObjectInfo is what a listing or HEAD reports about one object. ETag is
// stored without surrounding quotes.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

type Page struct {
	Objects   []ObjectInfo
	NextToken string
	Truncated bool
}

// PutOptions carries the optional headers for PutObject and CreateMultipartUpload.
type PutOptions struct {
	ContentMD5           string
	ContentType          string
	ServerSideEncryption string
	IfNoneMatch          bool
}

// New returns a client bound to one bucket. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	httpClient := &http.Client{}
	if opts.InsecureSkipVerify {
		httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	var endpoint string
	if strings.TrimSpace(opts.Endpoint) != "" {
		endpointURL, err := url.Parse(strings.TrimSpace(opts.Endpoint))
		if err != nil {
			return nil, fmt.Errorf("s3 endpoint: %w", err)
		}
		if endpointURL.Scheme == "" {
			endpointURL, err = url.Parse("https://" + strings.TrimSpace(opts.Endpoint))
			if err != nil {
				return nil, fmt.Errorf("s3 endpoint: %w", err)
			}
		}
		endpoint = endpointURL.String()
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = opts.PathStyle
		if opts.DisableRequestChecksums {
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	return &Client{
		client: client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

// Key joins relative onto the client prefix. Without a prefix the key is
// returned untouched so arbitrary source keys survive the round trip.
func (c *Client) Key(relative string) string {
	if c.prefix == "" {
		return relative
	}
	return path.Join(c.prefix, strings.Trim(relative, "/"))
}

// Relative strips the client prefix from a full key.
func (c *Client) Relative(fullKey string) string {
	if c.prefix == "" {
		return fullKey
	}
	return strings.TrimPrefix(strings.TrimPrefix(fullKey, c.prefix), "/")
}

func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) Prefix() string {
	return c.prefix
}

// ListPage fetches one ListObjectsV2 page under a raw key prefix. Keys in the
// page are full keys.
func (c *Client) ListPage(ctx context.Context, prefix, token string, pageSize int32) (Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		MaxKeys: aws.Int32(pageSize),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}
	out, err := c.client.ListObjectsV2(ctx, input)
	if err != nil {
		return Page{}, translate(err)
	}
	page := Page{
		Objects:   make([]ObjectInfo, 0, len(out.Contents)),
		Truncated: aws.ToBool(out.IsTruncated),
		NextToken: aws.ToString(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		page.Objects = append(page.Objects, ObjectInfo{
			Key:          *obj.Key,
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified).UTC(),
			ETag:         TrimETag(aws.ToString(obj.ETag)),
		})
	}
	return page, nil
}

// ListObjects lists everything under prefix (relative to the client prefix),
// returning relative keys. maxKeys <= 0 means no limit.
func (c *Client) ListObjects(ctx context.Context, prefix string, maxKeys int32) ([]ObjectInfo, error) {
	fullPrefix := c.Key(prefix)
	if fullPrefix != "" && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(fullPrefix),
	}
	if maxKeys > 0 && maxKeys < 1000 {
		input.MaxKeys = aws.Int32(maxKeys)
	}
	var objects []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translate(err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			objects = append(objects, ObjectInfo{
				Key:          c.Relative(*obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified).UTC(),
				ETag:         TrimETag(aws.ToString(obj.ETag)),
			})
		}
		if maxKeys > 0 && int32(len(objects)) >= maxKeys {
			objects = objects[:maxKeys]
			break
		}
	}
	return objects, nil
}

func (c *Client) HeadObject(ctx context.Context, key string) (ObjectInfo, error) {
	out, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.Key(key)),
	})
	if err != nil {
		return ObjectInfo{}, translate(err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified).UTC(),
		ETag:         TrimETag(aws.ToString(out.ETag)),
	}, nil
}

// GetObject opens key for reading. A non-empty ifMatch makes the read fail
// with ErrPreconditionFailed when the object no longer carries that ETag.
func (c *Client) GetObject(ctx context.Context, key, ifMatch string) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.Key(key)),
	}
	if ifMatch != "" {
		input.IfMatch = aws.String(QuoteETag(ifMatch))
	}
	out, err := c.client.GetObject(ctx, input)
	if err != nil {
		return nil, translate(err)
	}
	return out.Body, nil
}

// PutObject writes body in a single request and returns the stored ETag.
func (c *Client) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts PutOptions) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(c.Key(key)),
		Body:          body,
		ContentLength: aws.Int64(contentLength),
	}
	if opts.ContentMD5 != "" {
		input.ContentMD5 = aws.String(opts.ContentMD5)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ServerSideEncryption != "" {
		input.ServerSideEncryption = types.ServerSideEncryption(opts.ServerSideEncryption)
	}
	if opts.IfNoneMatch {
		input.IfNoneMatch = aws.String("*")
	}
	out, err := c.client.PutObject(ctx, input)
	if err != nil {
		return "", translate(err)
	}
	return TrimETag(aws.ToString(out.ETag)), nil
}

// DeleteObject removes key. A non-empty ifMatch makes the delete conditional
// on the current ETag.
func (c *Client) DeleteObject(ctx context.Context, key, ifMatch string) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.Key(key)),
	}
	if ifMatch != "" {
		input.IfMatch = aws.String(QuoteETag(ifMatch))
	}
	_, err := c.client.DeleteObject(ctx, input)
	return translate(err)
}

// CreateBucket creates the client bucket, treating an existing bucket as success.
func (c *Client) CreateBucket(ctx context.Context) error {
	_, err := c.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	if errors.As(err, &owned) || errors.As(err, &exists) {
		return nil
	}
	return translate(err)
}

func (c *Client) Client() *s3.Client {
	return c.client
}

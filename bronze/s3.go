package bronze

import (
	"context"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/biograph/bdk"
	"github.com/pkg/errors"
)

// S3Fetcher fetches s3://bucket/key URLs. Change detection uses the object's
// ETag (and LastModified as the fallback), same priority as HTTP.
type S3Fetcher struct {
	API    s3iface.S3API
	Logger *log.Logger
}

// NewS3Fetcher builds a fetcher with a fresh session for the given region.
func NewS3Fetcher(region string, logger *log.Logger) (*S3Fetcher, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	sess, err := session.NewSession(aws.NewConfig().WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	return &S3Fetcher{API: s3.New(sess), Logger: logger}, nil
}

func splitS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", errors.Wrapf(err, "parsing s3 url %s", raw)
	}
	if u.Scheme != "s3" || u.Host == "" || len(u.Path) < 2 {
		return "", "", errors.Errorf("malformed s3 url: %s", raw)
	}
	return u.Host, u.Path[1:], nil
}

// FetchIfChanged implements Fetcher.
func (f *S3Fetcher) FetchIfChanged(ctx context.Context, spec Spec, prev *Meta, dir string) (*Fetched, error) {
	bucket, key, err := splitS3URL(spec.URL)
	if err != nil {
		return nil, err
	}

	if prev != nil && (spec.CheckETag || spec.CheckLastModified) {
		head, err := f.API.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, &bdk.DownloadError{URL: spec.URL, Attempts: 1, Err: errors.Wrap(err, "heading object")}
		}
		if spec.CheckETag && prev.ETag != "" && aws.StringValue(head.ETag) == prev.ETag {
			return nil, nil
		}
		if spec.CheckLastModified && prev.LastModified != "" && head.LastModified != nil &&
			head.LastModified.UTC().Format(time.RFC1123) == prev.LastModified {
			return nil, nil
		}
	}

	obj, err := f.API.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &bdk.DownloadError{URL: spec.URL, Attempts: 1, Err: errors.Wrap(err, "getting object")}
	}
	defer obj.Body.Close()

	fetched, err := spoolBody(obj.Body, dir, spec)
	if err != nil {
		return nil, err
	}
	fetched.ETag = aws.StringValue(obj.ETag)
	if obj.LastModified != nil {
		fetched.LastModified = obj.LastModified.UTC().Format(time.RFC1123)
	}
	return fetched, nil
}

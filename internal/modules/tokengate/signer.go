package tokengate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"github.com/tomtev/page.fun/internal/config"
)

// SignedAccess is a time-boxed link to private content.
type SignedAccess struct {
	URL       string `json:"url"`
	ExpiresIn string `json:"expiresIn"`
}

// Signer issues SignedAccess for a resource URL.
type Signer interface {
	IssueSignedAccess(ctx context.Context, resourceURL string) (*SignedAccess, error)
}

// S3Signer presigns GetObject requests against the private content bucket.
type S3Signer struct {
	presign      *s3.PresignClient
	endpoint     *url.URL
	bucket       string
	customDomain string
	pathStyle    bool
	ttl          time.Duration
}

// NewS3Signer builds a presigner for cfg. A custom endpoint implies
// path-style addressing, as most S3-compatible stores expect it.
func NewS3Signer(cfg config.BlobConfig, ttl time.Duration) (*S3Signer, error) {
	if !cfg.Enabled() {
		return nil, ErrSigningDisabled
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}
	custom := strings.TrimSpace(cfg.Endpoint)
	endpoint := custom
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", region)
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	endpoint = strings.TrimSuffix(endpoint, "/")
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid s3 endpoint: %s", endpoint)
	}

	pathStyle := cfg.PathStyleAccess || custom != ""
	client := s3.New(s3.Options{
		Region:       region,
		Credentials:  aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		UsePathStyle: pathStyle,
		BaseEndpoint: aws.String(endpoint),
	})

	return &S3Signer{
		presign:      s3.NewPresignClient(client),
		endpoint:     parsed,
		bucket:       cfg.Bucket,
		customDomain: strings.TrimRight(strings.TrimSpace(cfg.CustomDomain), "/"),
		pathStyle:    pathStyle,
		ttl:          ttl,
	}, nil
}

func (s *S3Signer) IssueSignedAccess(ctx context.Context, resourceURL string) (*SignedAccess, error) {
	key, err := s.objectKey(resourceURL)
	if err != nil {
		return nil, err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, eris.Wrapf(err, "presign %q", key)
	}
	return &SignedAccess{URL: req.URL, ExpiresIn: HumanDuration(s.ttl)}, nil
}

// objectKey maps a resource URL back to its key in the bucket. It accepts the
// custom domain, path-style and virtual-hosted forms and s3:// URIs.
func (s *S3Signer) objectKey(resourceURL string) (string, error) {
	raw := strings.TrimSpace(resourceURL)
	if s.customDomain != "" && strings.HasPrefix(raw, s.customDomain+"/") {
		return cleanKey(strings.TrimPrefix(raw, s.customDomain+"/"))
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrResourceOutsideBucket
	}
	path := strings.TrimPrefix(u.EscapedPath(), "/")
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}

	switch {
	case u.Scheme == "s3" && strings.EqualFold(u.Host, s.bucket):
		return cleanKey(path)
	case u.Scheme != "http" && u.Scheme != "https":
		return "", ErrResourceOutsideBucket
	case strings.EqualFold(u.Host, s.endpoint.Host):
		base := strings.Trim(s.endpoint.Path, "/")
		if base != "" {
			if !strings.HasPrefix(path, base+"/") {
				return "", ErrResourceOutsideBucket
			}
			path = strings.TrimPrefix(path, base+"/")
		}
		if !strings.HasPrefix(path, s.bucket+"/") {
			return "", ErrResourceOutsideBucket
		}
		return cleanKey(strings.TrimPrefix(path, s.bucket+"/"))
	case strings.EqualFold(u.Host, s.bucket+"."+s.endpoint.Host):
		return cleanKey(path)
	}
	return "", ErrResourceOutsideBucket
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if key == "" || strings.Contains(key, "..") {
		return "", ErrResourceOutsideBucket
	}
	return key, nil
}

// HumanDuration renders d the way clients display link lifetimes, e.g. "10 minutes".
func HumanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0 && d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0 && d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d.Round(time.Second)/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

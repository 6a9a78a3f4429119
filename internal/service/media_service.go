package service

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	config "github.com/maheshrc27/content-publisher/configs"
	"github.com/maheshrc27/content-publisher/internal/models"
)

// MediaResolver turns a stored media reference into one the platform can
// fetch: a public URL with a known media kind.
type MediaResolver interface {
	Resolve(ctx context.Context, ref models.MediaRef) (models.MediaRef, error)
}

type mediaResolver struct {
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
}

// NewMediaResolver presigns object keys against the R2 bucket when R2 is
// configured. Without it only absolute http(s) URLs resolve.
func NewMediaResolver(ctx context.Context, cfg config.R2) (MediaResolver, error) {
	if !cfg.Enabled() {
		return &mediaResolver{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})
	return newMediaResolver(client, cfg.BucketName, cfg.URLTTL), nil
}

func newMediaResolver(client *s3.Client, bucket string, ttl time.Duration) *mediaResolver {
	return &mediaResolver{
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		ttl:     ttl,
	}
}

func (r *mediaResolver) Resolve(ctx context.Context, ref models.MediaRef) (models.MediaRef, error) {
	out := ref
	if out.Kind == "" {
		out.Kind = inferMediaKind(ref.URL)
	}

	if isRemoteURL(ref.URL) {
		return out, nil
	}

	if r.presign == nil {
		return models.MediaRef{}, fmt.Errorf("%w: %q is not a URL and object storage is not configured", ErrMediaUnresolvable, ref.URL)
	}

	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(strings.TrimPrefix(ref.URL, "/")),
	}, s3.WithPresignExpires(r.ttl))
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("failed to presign media %q: %w", ref.URL, err)
	}

	out.URL = req.URL
	return out, nil
}

func isRemoteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// inferMediaKind guesses from the file extension; anything that is not a
// known video type is treated as an image.
func inferMediaKind(raw string) models.MediaKind {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if ext == "" {
		return models.MediaImage
	}

	if filetype.GetType(ext).MIME.Type == "video" {
		return models.MediaVideo
	}
	return models.MediaImage
}

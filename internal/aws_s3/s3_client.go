package aws_s3

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/IliaW/program-scraper/config"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	crd "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type BucketClient interface {
	Upload(ctx context.Context, runID string, file string) (string, error)
}

type S3BucketClient struct {
	client *s3.Client
	cfg    *config.S3Config
	log    *slog.Logger
}

func NewS3BucketClient(ctx context.Context, cfg *config.S3Config, log *slog.Logger) (*S3BucketClient, error) {
	log.Info("connecting to s3...")
	opts := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithCredentialsProvider(crd.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, "")),
		awsCfg.WithRegion(cfg.Region),
	}
	if cfg.AwsBaseEndpoint != "" {
		opts = append(opts, awsCfg.WithBaseEndpoint(cfg.AwsBaseEndpoint))
	}
	s3Config, err := awsCfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	// LocalStack does not support `virtual host addressing style` that uses s3 by default.
	// For test purposes use configuration with disabled 'virtual hosted bucket addressing'.
	var s3client *s3.Client
	if cfg.AwsAccessKey == "test" {
		log.Warn("test configuration for s3")
		s3client = s3.NewFromConfig(s3Config, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	} else {
		s3client = s3.NewFromConfig(s3Config)
	}
	log.Info("connected to s3")

	return &S3BucketClient{
		client: s3client,
		cfg:    cfg,
		log:    log,
	}, nil
}

// Upload puts file under <key_prefix>/<runID>/<file name> and returns its link.
func (bc *S3BucketClient) Upload(ctx context.Context, runID string, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	s3Key := objectKey(bc.cfg.KeyPrefix, runID, file)
	contentType := contentTypeOf(file)
	_, err = bc.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bc.cfg.BucketName,
		Key:         &s3Key,
		Body:        f,
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", s3Key, err)
	}
	bc.log.Debug("file saved to s3.", slog.String("key", s3Key))

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bc.cfg.BucketName, bc.cfg.Region, s3Key), nil
}

// UploadAll uploads every file and returns the links of the ones that made it.
func UploadAll(ctx context.Context, bc BucketClient, runID string, files []string, log *slog.Logger) []string {
	links := make([]string, 0, len(files))
	for _, file := range files {
		link, err := bc.Upload(ctx, runID, file)
		if err != nil {
			log.Error("failed to save file to s3.", slog.String("file", file), slog.String("err", err.Error()))
			continue
		}
		links = append(links, link)
	}
	return links
}

func objectKey(prefix, runID, file string) string {
	return path.Join(prefix, runID, filepath.Base(file))
}

func contentTypeOf(file string) string {
	switch ext := filepath.Ext(file); ext {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}

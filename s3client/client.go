package s3client

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"text2phenotype.com/ner/logger"
)

// ErrNotFound is returned by Download when the key does not exist in the bucket.
var ErrNotFound = errors.New("s3 object not found")

type EnvironmentConfig struct {
	BucketName  string `envconfig:"MDL_COMN_STORAGE_CONTAINER_NAME" required:"true"`
	T2PEnv      string `envconfig:"T2P_ENV" required:"true"`
	Region      string `envconfig:"MDL_COMN_AWS_REGION_NAME" required:"true"`
	AwsEndpoint string `envconfig:"MDL_COMN_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"MDL_COMN_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"MDL_COMN_AWS_ACCESS_KEY" default:""`
}

type Client struct {
	env  EnvironmentConfig
	mu   sync.Mutex
	sess *session.Session
}

var clientLogger = logger.NewLogger("S3Client")
var sdkLogger = logger.NewLogger("S3-SDK")

func New() (*Client, error) {
	var env EnvironmentConfig
	if err := envconfig.Process("", &env); err != nil {
		clientLogger.Err(err).Caller().Msg("Failed to get proper variables from environment")
		return nil, err
	}
	client := Client{env: env}
	if _, err := client.refreshSession(); err != nil {
		return nil, err
	}
	return &client, nil
}

func (client *Client) Bucket() string {
	return client.env.BucketName
}

// Upload stores data under key. A failed attempt refreshes the session and is retried once.
func (client *Client) Upload(data []byte, key string) error {
	params := &s3manager.UploadInput{
		Bucket: aws.String(client.env.BucketName),
		Key:    aws.String(key),
	}
	return client.withSession(func(sess *session.Session) error {
		params.Body = bytes.NewReader(data)
		return client.upload(sess, params)
	})
}

func (client *Client) Download(key string) ([]byte, error) {
	params := &s3.GetObjectInput{
		Bucket: aws.String(client.env.BucketName),
		Key:    aws.String(key),
	}
	var res []byte
	err := client.withSession(func(sess *session.Session) error {
		var err error
		res, err = client.download(sess, params)
		return err
	})
	return res, err
}

func (client *Client) Close() {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.sess = nil
	clientLogger.Info().Msg("Closing client")
}

func (client *Client) withSession(call func(sess *session.Session) error) error {
	sess, err := client.session()
	if err != nil {
		return err
	}
	err = call(sess)
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	clientLogger.Error().Err(err).Msg("Caught error while using S3 session, trying to refresh it")
	if sess, err = client.refreshSession(); err != nil {
		return err
	}
	return call(sess)
}

func (client *Client) upload(sess *session.Session, params *s3manager.UploadInput) error {
	sdkLog := sdkLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()

	uploader := s3manager.NewUploader(sess.Copy(&aws.Config{Logger: getLogger(sdkLog)}))
	clientLogger.Debug().Str("key", *params.Key).Msg("Uploading the file")
	_, err := uploader.Upload(params)
	return err
}

func (client *Client) download(sess *session.Session, params *s3.GetObjectInput) ([]byte, error) {
	nerLogger := clientLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()

	sdkLog := sdkLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()

	downloader := s3manager.NewDownloader(sess.Copy(&aws.Config{Logger: getLogger(sdkLog)}))
	buf := aws.NewWriteAtBuffer([]byte{})

	nerLogger.Debug().Msg("Downloading file")
	size, err := downloader.Download(buf, params)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, *params.Bucket, *params.Key)
	}
	if err != nil {
		nerLogger.Error().Err(err).Msg("Failed to download file")
		return nil, err
	}
	nerLogger.Debug().Msgf("Downloaded %v bytes", size)
	return buf.Bytes(), nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
}

func (client *Client) session() (*session.Session, error) {
	client.mu.Lock()
	sess := client.sess
	client.mu.Unlock()
	if sess != nil {
		return sess, nil
	}
	return client.refreshSession()
}

// refreshSession tries the instance role first and falls back to the credentials from the environment.
func (client *Client) refreshSession() (*session.Session, error) {
	client.mu.Lock()
	defer client.mu.Unlock()

	sess, err := session.NewSession(client.createEC2Config())
	if err == nil {
		if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err == nil {
			client.sess = sess
			clientLogger.Info().Msg("S3 session successfully initialized using EC2")
			return sess, nil
		}
	}
	clientLogger.Info().Msg("Could not initialize S3 session using EC2, trying env credentials")

	cfg, err := client.createEnvConfig()
	if err != nil {
		client.sess = nil
		return nil, err
	}
	sess, err = session.NewSession(cfg)
	if err == nil {
		_, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{})
	}
	if err != nil {
		client.sess = nil
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return nil, errors.New("could not initialize S3 session")
	}
	client.sess = sess
	clientLogger.Info().Msg("S3 session successfully initialized using env credentials")
	return sess, nil
}

func (client *Client) createEC2Config() *aws.Config {
	return &aws.Config{
		Region:     aws.String(client.env.Region),
		MaxRetries: aws.Int(4),
		LogLevel:   aws.LogLevel(aws.LogDebug),
	}
}

func (client *Client) createEnvConfig() (*aws.Config, error) {
	creds := credentials.NewStaticCredentials(client.env.AccessKeyID, client.env.AccessKey, "")
	if _, err := creds.Get(); err != nil {
		clientLogger.Error().Err(err).Msg("Error with credentials from environment")
		return nil, err
	}
	cfg := aws.NewConfig().
		WithRegion(client.env.Region).
		WithMaxRetries(4).
		WithCredentials(creds).
		WithLogLevel(aws.LogDebug)

	if client.env.T2PEnv == "dev" && len(client.env.AwsEndpoint) > 0 {
		cfg = cfg.WithEndpoint(client.env.AwsEndpoint).
			WithS3ForcePathStyle(true)
	}
	return cfg, nil
}

type s3Logger struct {
	nerLogger zerolog.Logger
}

func getLogger(nerLogger zerolog.Logger) *s3Logger {
	return &s3Logger{nerLogger}
}

func (logger *s3Logger) Log(v ...interface{}) {
	logger.nerLogger.Debug().Msg(fmt.Sprint(v...))
}

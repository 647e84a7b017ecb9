// Package rmaws holds the AWS session and credential plumbing shared by the
// store, cluster and IAM clients.
package rmaws

import (
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/defaults"
	"github.com/aws/aws-sdk-go/aws/session"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// DefaultRegion is used when neither the config nor the environment name a region.
const DefaultRegion = "us-west-2"

// Config describes how to reach an AWS (or S3 compatible) endpoint.
type Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PathStyle forces path style addressing and plain http, as needed by minio.
	PathStyle bool
}

// ConfigFromViper reads the AWS settings from the loaded configuration.
// With minio set, the endpoint and keys come from the minio settings.
func ConfigFromViper(minio bool) Config {
	c := Config{
		Region:    viper.GetString("region"),
		AccessKey: viper.GetString("accessKey"),
		SecretKey: viper.GetString("secretKey"),
	}
	if minio {
		c.Endpoint = viper.GetString("minioHost")
		if host := os.Getenv("MINIO_HOST"); host != "" {
			c.Endpoint = host
		}
		c.AccessKey = viper.GetString("minioUser")
		c.SecretKey = viper.GetString("minioKey")
		c.PathStyle = true
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	return c
}

// WithRegion returns c using region, unless region is empty.
func (c Config) WithRegion(region string) Config {
	if region != "" {
		c.Region = region
	}
	return c
}

// Credentials builds the provider chain: process env, RANKMANIAC_ prefixed env,
// configured static keys, then the shared credentials file.
func (c Config) Credentials() *credentials.Credentials {
	return credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvProvider{},
		&PrefixEnvProvider{prefix: "RANKMANIAC_"},
		&credentials.StaticProvider{
			Value: credentials.Value{
				AccessKeyID:     c.AccessKey,
				SecretAccessKey: c.SecretKey,
			},
		},
		&credentials.SharedCredentialsProvider{},
	})
}

// NewSession creates an AWS session for c.
func NewSession(c Config) (*session.Session, error) {
	awsConfig := defaults.Config().
		WithRegion(c.Region).
		WithCredentials(c.Credentials())

	if c.Endpoint != "" {
		awsConfig.Endpoint = aws.String(c.Endpoint)
	}
	if c.PathStyle {
		awsConfig.S3ForcePathStyle = aws.Bool(true)
		awsConfig.DisableSSL = aws.Bool(true)
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		awsConfig.WithCredentialsChainVerboseErrors(true)
	}

	return session.NewSessionWithOptions(session.Options{
		Config:            *awsConfig,
		SharedConfigState: session.SharedConfigEnable,
	})
}

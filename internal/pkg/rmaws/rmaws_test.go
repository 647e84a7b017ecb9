package rmaws

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsThrottle(t *testing.T) {
	var tests = []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{awserr.New("ThrottlingException", "Rate exceeded", nil), true},
		{awserr.New("RequestLimitExceeded", "", nil), true},
		{awserr.New("SlowDown", "", nil), true},
		{awserr.New("ValidationException", "", nil), false},
		{awserr.NewRequestFailure(awserr.New("Unknown", "", nil), 429, "id"), true},
		{awserr.NewRequestFailure(awserr.New("Unknown", "", nil), 500, "id"), false},
		{fmt.Errorf("delete: %w", awserr.New("SlowDown", "", nil)), true},
		{fmt.Errorf("delete: %w", awserr.NewRequestFailure(awserr.New("Unknown", "", nil), 429, "id")), true},
		{fmt.Errorf("delete: %w", awserr.New("AccessDenied", "", nil)), false},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, IsThrottle(test.err), "%v", test.err)
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(awserr.New("NoSuchKey", "", nil)))
	assert.True(t, IsNotFound(awserr.NewRequestFailure(awserr.New("Unknown", "", nil), 404, "id")))
	assert.False(t, IsNotFound(awserr.New("AccessDenied", "", nil)))
	assert.False(t, IsNotFound(errors.New("boom")))
	assert.True(t, IsNotFound(fmt.Errorf("get: %w", awserr.New("NoSuchKey", "", nil))))
}

func TestPrefixEnvProvider(t *testing.T) {
	for _, key := range []string{"TEST_AWS_ACCESS_KEY_ID", "TEST_AWS_SECRET_KEY", "TEST_AWS_SESSION_TOKEN", "MINIO_USER", "TEST_MINIO_KEY"} {
		defer os.Unsetenv(key)
	}

	p := &PrefixEnvProvider{prefix: "TEST_"}
	_, err := p.Retrieve()
	assert.Equal(t, credentials.ErrAccessKeyIDNotFound, err)
	assert.True(t, p.IsExpired())

	os.Setenv("TEST_AWS_ACCESS_KEY_ID", "id")
	_, err = p.Retrieve()
	assert.Equal(t, credentials.ErrSecretAccessKeyNotFound, err)

	os.Setenv("TEST_AWS_SECRET_KEY", "secret")
	os.Setenv("TEST_AWS_SESSION_TOKEN", "token")
	value, err := p.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, "id", value.AccessKeyID)
	assert.Equal(t, "secret", value.SecretAccessKey)
	assert.Equal(t, "token", value.SessionToken)
	assert.False(t, p.IsExpired())
}

func TestPrefixEnvProviderMinioFallback(t *testing.T) {
	defer os.Unsetenv("MINIO_USER")
	defer os.Unsetenv("TEST_MINIO_KEY")
	os.Setenv("MINIO_USER", "minio")
	os.Setenv("TEST_MINIO_KEY", "minio123")

	p := &PrefixEnvProvider{prefix: "TEST_"}
	value, err := p.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, "minio", value.AccessKeyID)
	assert.Equal(t, "minio123", value.SecretAccessKey)
}

func TestConfigWithRegion(t *testing.T) {
	c := Config{Region: DefaultRegion}
	assert.Equal(t, "eu-central-1", c.WithRegion("eu-central-1").Region)
	assert.Equal(t, DefaultRegion, c.WithRegion("").Region)
	assert.Equal(t, DefaultRegion, c.Region)
}

func TestConfigFromViper(t *testing.T) {
	defer viper.Reset()

	c := ConfigFromViper(false)
	assert.Equal(t, DefaultRegion, c.Region)
	assert.False(t, c.PathStyle)

	viper.Set("region", "eu-central-1")
	viper.Set("minioHost", "localhost:9000")
	viper.Set("minioUser", "minio")
	viper.Set("minioKey", "minio123")
	os.Unsetenv("MINIO_HOST")

	c = ConfigFromViper(true)
	assert.Equal(t, "eu-central-1", c.Region)
	assert.Equal(t, "localhost:9000", c.Endpoint)
	assert.Equal(t, "minio", c.AccessKey)
	assert.True(t, c.PathStyle)

	sess, err := NewSession(c)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", *sess.Config.Endpoint)
	assert.True(t, *sess.Config.S3ForcePathStyle)
}

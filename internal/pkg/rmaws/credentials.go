package rmaws

import (
	"os"

	"github.com/aws/aws-sdk-go/aws/credentials"
)

// envProviderName labels credentials read by a PrefixEnvProvider.
const envProviderName = "RankmaniacEnvProvider"

// PrefixEnvProvider reads static keys from environment variables named
// prefix+AWS_ACCESS_KEY_ID and prefix+AWS_SECRET_ACCESS_KEY. The minio
// variables MINIO_USER and MINIO_KEY, with or without prefix, are accepted
// as fallbacks.
type PrefixEnvProvider struct {
	prefix    string
	retrieved bool
}

func (e *PrefixEnvProvider) candidates(names ...string) []string {
	keys := make([]string, 0, len(names)+1)
	for _, name := range names {
		keys = append(keys, e.prefix+name)
	}
	// the minio name is last and also tried without prefix
	return append(keys, names[len(names)-1])
}

// Retrieve reads the keys from the environment.
func (e *PrefixEnvProvider) Retrieve() (credentials.Value, error) {
	e.retrieved = false
	value := credentials.Value{ProviderName: envProviderName}

	value.AccessKeyID = firstEnv(e.candidates("AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY", "MINIO_USER"))
	if value.AccessKeyID == "" {
		return value, credentials.ErrAccessKeyIDNotFound
	}
	value.SecretAccessKey = firstEnv(e.candidates("AWS_SECRET_ACCESS_KEY", "AWS_SECRET_KEY", "MINIO_KEY"))
	if value.SecretAccessKey == "" {
		return value, credentials.ErrSecretAccessKeyNotFound
	}
	value.SessionToken = os.Getenv(e.prefix + "AWS_SESSION_TOKEN")

	e.retrieved = true
	return value, nil
}

// IsExpired reports whether Retrieve has yet to succeed.
func (e *PrefixEnvProvider) IsExpired() bool {
	return !e.retrieved
}

func firstEnv(keys []string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

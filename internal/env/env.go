package env

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	UserSecretKey    = "USER_SECRET"
	ClientSecretKey  = "CLIENT_SECRET"
	ChatRedisURL     = "CHAT_REDIS_URL"
	ChatRedisPass    = "CHAT_REDIS_PASS"
	Environment      = "SERVICE_ENV"
	WebUrl           = "WEB_URL"
)

// Load pulls a local .env file when present. Missing files are fine; real
// deployments set the environment directly.
func Load() {
	_ = godotenv.Load()
}

// Require validates that every listed variable is set. Called from the
// process entry points so that merely importing this package (for example
// from a test) never fails on an incomplete environment.
func Require(keys ...string) error {
	for _, key := range keys {
		if os.Getenv(key) == "" {
			return fmt.Errorf("env: required environment variable not set: %s", key)
		}
	}
	return nil
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}

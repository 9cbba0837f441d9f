package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	DatabaseSchema  string `envconfig:"DATABASE_SCHEMA" default:"purchasedesk"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"30"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`

	// S3 compatible object storage for request images
	S3Bucket        string `envconfig:"S3_BUCKET"`
	S3Region        string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint      string `envconfig:"S3_ENDPOINT"`
	S3AccessKey     string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey     string `envconfig:"S3_SECRET_KEY"`
	S3UsePathStyle  bool   `envconfig:"S3_USE_PATH_STYLE" default:"false"`
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"`

	// Upload checks applied by the HTTP layer before files reach the image store
	UploadMaxFileBytes        int64    `envconfig:"UPLOAD_MAX_FILE_BYTES" default:"10485760"` // 10 MiB
	UploadMaxImagesPerRequest int      `envconfig:"UPLOAD_MAX_IMAGES_PER_REQUEST" default:"30"`
	UploadAllowedContentTypes []string `envconfig:"UPLOAD_ALLOWED_TYPES" default:"image/jpeg,image/png,image/webp,image/heic"`
}

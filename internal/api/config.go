package api

import (
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the API server's environment configuration.
type Config struct {
	Port           string        `env:"PORT,default=8080"`
	ProjectID      string        `env:"PROJECT_ID,required"`
	UploadBucket   string        `env:"UPLOAD_BUCKET"`
	VertexAIRegion string        `env:"VERTEX_AI_REGION,default=us-central1"`
	AgentName      string        `env:"AGENT_NAME,default=grocery-agent"`
	SignedURLTTL   time.Duration `env:"SIGNED_URL_TTL,default=15m"`
}

// LoadConfig decodes Config from the process environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// Addr is where the RESP server listens, as host:port
	Addr string `env:"BEACON_ADDR,default=127.0.0.1:6379"`

	// HTTPAddr is where the admin HTTP server listens. Empty disables it.
	HTTPAddr  string `env:"BEACON_HTTP_ADDR"`
	DebugHTTP bool   `env:"BEACON_DEBUG_HTTP"`

	Listeners int  `env:"BEACON_LISTENERS,default=1"`
	Reuseport bool `env:"BEACON_REUSEPORT"`

	// MaxBuffer is the most unconsumed input kept per connection, 0 is unbounded
	MaxBuffer int `env:"BEACON_MAX_BUFFER,default=0"`

	LogLevel string `env:"BEACON_LOG_LEVEL,default=info"`
}

// LoadConfig reads the config from the process environment, after loading
// .env.local if there is one.
func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return LoadConfigWith(ctx, envconfig.OsLookuper())
}

func LoadConfigWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := envconfig.ProcessWith(ctx, &config, lookuper); err != nil {
		return nil, err
	}

	return &config, nil
}

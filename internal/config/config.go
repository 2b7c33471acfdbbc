package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string      `yaml:"env" env-default:"local"`
	StoragePath string      `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	Redis       RedisConfig `yaml:"redis"`
	HTTP        HTTPConfig  `yaml:"http"`
	Auth        AuthConfig  `yaml:"auth"`
}

type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

type HTTPConfig struct {
	Port        int      `yaml:"port" env-default:"8080"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret           string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AdminSessionTTL     time.Duration `yaml:"admin_session_ttl" env-default:"12h"`
	AttendantSessionTTL time.Duration `yaml:"attendant_session_ttl" env-default:"720h"`
	SignInNonceTTL      time.Duration `yaml:"signin_nonce_ttl" env-default:"5m"`
	LinkNonceTTL        time.Duration `yaml:"link_nonce_ttl" env-default:"10m"`
}

func Load(path string) *Config {
	var config Config
	err := cleanenv.ReadConfig(path, &config)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &config
}

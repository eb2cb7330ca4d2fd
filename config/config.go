package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	Port           int
	Store          string // mongo | memory
	MongoURI       string
	MongoDB        string
	JWTKey         string
	TokenTTL       time.Duration
	Debug          bool
	CORSOrigins    []string
	AdminPassword  string
	RequestTimeout time.Duration
}

// LoadConfig 从环境变量加载配置
func LoadConfig() *Config {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		port = 8080
	}
	return &Config{
		Port:           port,
		Store:          getEnv("STORE", "mongo"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:        getEnv("MONGO_DB", "pipeline"),
		JWTKey:         getEnv("JWT_KEY", "your-secret-key"), // 实际环境应替换为安全密钥
		TokenTTL:       getDuration("TOKEN_TTL", 30*24*time.Hour),
		Debug:          getEnv("GIN_MODE", "debug") == "debug",
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:3001,http://localhost:5173")),
		AdminPassword:  getEnv("ADMIN_PASSWORD", "admin123"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 30*time.Second),
	}
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

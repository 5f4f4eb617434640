package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	Voice  VoiceConfig
}

type ServerConfig struct {
	Address string
	Mode    string // gin 的執行模式 (debug/release)
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
	SSLMode  string
	TimeZone string
}

// JWTConfig 登入 token 的簽章設定
type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

// VoiceConfig 語音發布權杖的簽章設定
type VoiceConfig struct {
	Secret          string
	TokenTTLMinutes int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./pkg/config")
	viper.AddConfigPath(".")

	// 設定預設值，讓沒有配置文件時也能在本地啟動
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("db.timezone", "UTC")
	viper.SetDefault("jwt.expiryhours", 240)
	viper.SetDefault("voice.tokenttlminutes", 60)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		MetricsPort string        `mapstructure:"metricsPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Retrieval struct {
		SimilarityThreshold float64 `mapstructure:"similarityThreshold"`
		FoodThresholdFactor float64 `mapstructure:"foodThresholdFactor"`
		AttractionsPerDay   int     `mapstructure:"attractionsPerDay"`
		RestaurantsPerDay   int     `mapstructure:"restaurantsPerDay"`
		MaxDayRadiusKm      float64 `mapstructure:"maxDayRadiusKm"`
		MinPerDay           int     `mapstructure:"minPerDay"`
	} `mapstructure:"retrieval"`
	GenerativeAI struct {
		Model          string `mapstructure:"model"`
		EmbeddingModel string `mapstructure:"embeddingModel"`
	} `mapstructure:"generativeAI"`
	Enrichment struct {
		Concurrency int           `mapstructure:"concurrency"`
		CacheTTL    time.Duration `mapstructure:"cacheTTL"`
	} `mapstructure:"enrichment"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Fall back to the embedded config when no file is found on disk.
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

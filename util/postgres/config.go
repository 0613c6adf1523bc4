package postgres

import (
	"fmt"
)

// Config holds PostgreSQL database connection configuration
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"` // disable, require, verify-ca, verify-full

	// ConnectAttempts bounds the retries made by Connect; zero means 5.
	ConnectAttempts int `yaml:"connect_attempts"`
}

// DefaultConfig returns a default configuration for local development
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		User:            "edgesim",
		Password:        "edgesim",
		Database:        "edgesim",
		SSLMode:         "disable",
		ConnectAttempts: 5,
	}
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("port must be positive")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.ConnectAttempts < 0 {
		return fmt.Errorf("connect_attempts must not be negative")
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = 5
	}
	return nil
}

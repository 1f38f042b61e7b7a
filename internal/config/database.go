// internal/config/database.go
package config

import (
	"fmt"
)

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// APIBaseURL resolves the payment gateway endpoint for the configured environment.
func (g *GatewayConfig) APIBaseURL() string {
	if g.BaseURL != "" {
		return g.BaseURL
	}
	if g.Env == GatewayEnvLive {
		return "https://api.maksekeskus.ee"
	}
	return "https://api.test.maksekeskus.ee"
}

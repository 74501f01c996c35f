package config

// ServerConfig configures skyplan serve.
type ServerConfig struct {
	Addr string `json:"addr"`
	// Token, when set, is required as a bearer token on the API routes.
	Token string `json:"token"`
}

// SetDefaults listens on port 9100.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":9100"
	}
}

package dialect

// ConnConfig holds the connection parameters of one endpoint. A non-empty DSN
// is passed to the driver as is and the remaining fields are ignored.
type ConnConfig struct {
	Driver                 string
	DSN                    string
	Host                   string
	Port                   int
	Database               string
	User                   string
	Password               string
	Encrypt                bool
	TrustServerCertificate bool
	ConnectTimeout         int // seconds
}

// DefaultConnectTimeout is used when ConnectTimeout is not set.
const DefaultConnectTimeout = 30

// Timeout returns the connect timeout in seconds, falling back to the default.
func (c ConnConfig) Timeout() int {
	if c.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return c.ConnectTimeout
}

// portOr returns the configured port or the dialect default.
func (c ConnConfig) portOr(def int) int {
	if c.Port <= 0 {
		return def
	}
	return c.Port
}

// Redacted returns a copy safe for logging.
func (c ConnConfig) Redacted() ConnConfig {
	if c.Password != "" {
		c.Password = "****"
	}
	if c.DSN != "" {
		c.DSN = "(dsn)"
	}
	return c
}

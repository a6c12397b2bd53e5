package bank

import "time"

const defaultTimeout = 10 * time.Second

// Config collects the bank provider settings in one place so that the client
// and the webhook verifier are constructed explicitly instead of reading
// ambient globals. WebhookSecret may be empty; see NewVerifier.
type Config struct {
	BaseURL       string
	APIToken      string
	CallbackURL   string
	WebhookSecret string
	Timeout       time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

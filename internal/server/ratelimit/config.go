package ratelimit

import "time"

// Rule limits one method and path. A Path ending in "/" matches by prefix.
// A Rate of zero leaves the endpoint unlimited.
type Rule struct {
	Method string
	Path   string
	Rate   float64 // tokens per second
	Burst  int
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled bool
	// Rate and Burst apply to requests no Rule matches.
	Rate  float64
	Burst int
	Rules []Rule
	// IdleTTL is how long an unused bucket is kept before Sweep drops it.
	IdleTTL time.Duration
	Exempt  map[string]bool
}

// generationShare is the fraction of the default rate granted to routes that
// start model calls.
const generationShare = 0.1

// NewConfig builds the API limits from a per-client rate. Routes that start
// generation work get a tenth of the rate and a small burst. A rate of zero
// disables limiting.
func NewConfig(rate float64, burst int) *Config {
	if rate <= 0 {
		return &Config{Enabled: false}
	}
	if burst <= 0 {
		burst = int(rate) + 1
	}
	genBurst := max(1, burst/10)
	return &Config{
		Enabled: true,
		Rate:    rate,
		Burst:   burst,
		Rules: []Rule{
			{Method: "GET", Path: "/health"},
			{Method: "POST", Path: "/pipelines", Rate: rate * generationShare, Burst: genBurst},
			{Method: "POST", Path: "/surveys", Rate: rate * generationShare, Burst: genBurst},
			{Method: "POST", Path: "/pipelines/", Rate: rate * generationShare, Burst: genBurst},
		},
		IdleTTL: time.Hour,
		Exempt:  make(map[string]bool),
	}
}

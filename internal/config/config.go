// Package config loads process-wide configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the knobs from the configuration-knobs table: loop
// pacing, subsystem intervals, and protocol defaults, plus the local
// HTTP surface's host/port.
type Config struct {
	Host string
	Port string

	LoopDelayMs             int
	RunSchedulerEveryMs     int
	RunSubscriptionsEveryMs int
	HTTPRequestTimeoutMs    int
	XMLParserBufferSize     int
	SSDPPort                int
	SubscriptionTimeoutSec  int
	MaxSendErrors           int
	MSearchRepeatMs         int

	DeviceProfilePath string

	// Verbose enables the 10 s diagnostic tick the Device Host loop
	// optionally runs.
	Verbose bool

	// ExtraSearchTargets holds additional STs loaded from
	// MSEARCH_EXTRA_TARGETS. No caller reads it: the control point
	// searches only for the ST passed to ControlPoint.Begin.
	ExtraSearchTargets []string
}

// Load reads configuration from environment variables with the defaults
// named in the configuration knobs table.
func Load() (Config, error) {
	return Config{
		Host: envString("HOST", "0.0.0.0"),
		Port: envString("PORT", "8200"),

		LoopDelayMs:             envInt("LOOP_DELAY_MS", 5),
		RunSchedulerEveryMs:     envInt("RUN_SCHEDULER_EVERY_MS", 10),
		RunSubscriptionsEveryMs: envInt("RUN_SUBSCRIPTIONS_EVERY_MS", 10),
		HTTPRequestTimeoutMs:    envInt("HTTP_REQUEST_TIMEOUT_MS", 6000),
		XMLParserBufferSize:     envInt("XML_PARSER_BUFFER_SIZE", 512),
		SSDPPort:                envInt("SSDP_PORT", 1900),
		SubscriptionTimeoutSec:  envInt("SUBSCRIPTION_TIMEOUT_SEC", 1800),
		MaxSendErrors:           envInt("MAX_SEND_ERRORS", 3),
		MSearchRepeatMs:         envInt("MSEARCH_REPEAT_MS", 10000),

		DeviceProfilePath: envString("DEVICE_PROFILE_PATH", "./device.yaml"),

		Verbose:            envBool("VERBOSE", false),
		ExtraSearchTargets: envCSV("MSEARCH_EXTRA_TARGETS"),
	}, nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true")
}

func envCSV(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return []string{}
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package config loads coldtrail's runtime configuration: the local node's
// name, its backup targets, and any named target groups. Values are sourced
// from environment variables so they can be injected locally via a .env
// file or via platform secrets, matching the teacher gateway's own
// internal/config package.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Options carries the reliability/cost metadata SPEC_FULL.md's supplemented
// features attach to a target. coldtrail performs no scheduling decisions
// based on these itself; they're surfaced for a caller (e.g. cmd/coldtrail)
// to make that call.
type Options struct {
	Reliable     bool
	UploadCost   int
	DownloadCost int
}

// Target is one destination coldtrail can connect to, the external
// collaborator spec.md §6 calls a "backend/destination descriptor".
type Target struct {
	Name     string
	URL      string
	User     string
	Password string
	KeyFile  string
	Options  Options
}

// TargetGroup names a set of targets that should receive the same Snapshot
// via history.MultiCommit.
type TargetGroup struct {
	Name    string
	Members []string
}

// Config is the fully validated runtime configuration for one coldtrail
// node.
type Config struct {
	NodeName     string
	Targets      []Target
	TargetGroups []TargetGroup
}

// Load reads configuration from environment variables and validates it,
// failing fast with an aggregated error rather than letting a missing field
// surface later as a confusing runtime failure.
func Load() (Config, error) {
	_ = godotenv.Load(".env", "../.env", "../../.env")

	cfg := Config{
		NodeName: strings.TrimSpace(os.Getenv("NODE_NAME")),
	}

	for _, name := range splitAndTrim(os.Getenv("TARGETS")) {
		t, err := loadTarget(name)
		if err != nil {
			return Config{}, err
		}
		cfg.Targets = append(cfg.Targets, t)
	}

	for _, name := range splitAndTrim(os.Getenv("TARGET_GROUPS")) {
		cfg.TargetGroups = append(cfg.TargetGroups, TargetGroup{
			Name:    name,
			Members: splitAndTrim(os.Getenv("TARGET_GROUP_" + envPrefix(name) + "_MEMBERS")),
		})
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadTarget(name string) (Target, error) {
	prefix := "TARGET_" + envPrefix(name) + "_"
	cost, err := parseIntEnv(prefix + "UPLOAD_COST")
	if err != nil {
		return Target{}, err
	}
	dcost, err := parseIntEnv(prefix + "DOWNLOAD_COST")
	if err != nil {
		return Target{}, err
	}

	return Target{
		Name:     name,
		URL:      strings.TrimSpace(os.Getenv(prefix + "URL")),
		User:     strings.TrimSpace(os.Getenv(prefix + "USER")),
		Password: os.Getenv(prefix + "PASSWORD"),
		KeyFile:  strings.TrimSpace(os.Getenv(prefix + "KEY_FILE")),
		Options: Options{
			Reliable:     parseBoolEnv(prefix + "RELIABLE"),
			UploadCost:   cost,
			DownloadCost: dcost,
		},
	}, nil
}

func (c Config) validate() error {
	var missing []string
	if c.NodeName == "" {
		missing = append(missing, "NODE_NAME")
	}

	names := map[string]bool{}
	for _, t := range c.Targets {
		names[t.Name] = true
		if t.URL == "" {
			missing = append(missing, fmt.Sprintf("TARGET_%s_URL", envPrefix(t.Name)))
			continue
		}
		if _, err := url.Parse(t.URL); err != nil {
			return fmt.Errorf("target %s: invalid URL %q", t.Name, t.URL)
		}
	}

	for _, g := range c.TargetGroups {
		if len(g.Members) == 0 {
			missing = append(missing, fmt.Sprintf("TARGET_GROUP_%s_MEMBERS", envPrefix(g.Name)))
			continue
		}
		for _, m := range g.Members {
			if !names[m] {
				return fmt.Errorf("target group %s: unknown member target %q", g.Name, m)
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// envPrefix turns a target/group name into the uppercased, underscore-safe
// form used to build its environment variable names.
func envPrefix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func splitAndTrim(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseBoolEnv(key string) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return b
}

func parseIntEnv(key string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

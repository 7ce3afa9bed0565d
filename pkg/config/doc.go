// Package config loads entitlement engine configuration from environment
// variables with the LAWAFRICA_ prefix. Every knob has a production default;
// Validate rejects combinations that cannot work.
package config

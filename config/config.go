// Package config loads service configuration from the environment with
// optional file overrides and validates it before anything starts.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/audiomint/tunegate/settlement"
	"github.com/audiomint/tunegate/types"
)

// Config is the full service configuration. Fields are validated at
// load time so a misconfigured process refuses to start instead of
// failing on its first payment.
type Config struct {
	// Port the HTTP server listens on.
	Port int `mapstructure:"port" validate:"gte=1,lte=65535"`

	// PayTo is the EVM address authorizations must name as recipient.
	PayTo string `mapstructure:"pay_to" validate:"required,eth_addr_lowercase_ok"`

	// Network selects the chain; "base" or "base-sepolia".
	Network string `mapstructure:"network" validate:"required"`

	// FacilitatorURL is the base URL of the x402 facilitator.
	FacilitatorURL string `mapstructure:"facilitator_url" validate:"required,url"`

	// TokenAddress optionally overrides the network's payment asset.
	TokenAddress string `mapstructure:"x402_token_address" validate:"omitempty,eth_addr_lowercase_ok"`

	// RPCURL optionally overrides the network's JSON-RPC endpoint.
	RPCURL string `mapstructure:"x402_rpc_url" validate:"omitempty,url"`

	// SettleTransactions enables broadcasting transferWithAuthorization
	// locally after verification. Ignored when the facilitator is a
	// managed one that settles on our behalf.
	SettleTransactions bool `mapstructure:"settle_transactions"`

	// SettlePrivateKey is the relayer key, 64 hex chars without 0x.
	// Required only when settlement is enabled.
	SettlePrivateKey string `mapstructure:"settle_private_key" validate:"omitempty,len=64,hexadecimal"`

	// SettleRPCURL overrides the RPC endpoint used for settlement only.
	SettleRPCURL string `mapstructure:"settle_rpc_url" validate:"omitempty,url"`

	// GeneratorMode selects the track generator: "placeholder" or
	// "elevenlabs".
	GeneratorMode string `mapstructure:"generator_mode" validate:"oneof=placeholder elevenlabs"`

	// ElevenLabsAPIKey authenticates to the live generator. Required in
	// elevenlabs mode.
	ElevenLabsAPIKey string `mapstructure:"elevenlabs_api_key"`

	// ElevenLabsModelID optionally overrides the generation model.
	ElevenLabsModelID string `mapstructure:"elevenlabs_model_id"`

	// LogLevel is the zap level: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// Load reads configuration from the environment (and an optional
// config file named by CONFIG_FILE) and validates it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8787)
	v.SetDefault("network", types.NetworkBaseSepolia.String())
	v.SetDefault("facilitator_url", "https://facilitator.daydreams.systems")
	v.SetDefault("generator_mode", "placeholder")
	v.SetDefault("log_level", "info")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Environment variables do not register with Unmarshal unless the
	// keys are bound explicitly.
	for _, key := range []string{
		"port", "pay_to", "network", "facilitator_url",
		"x402_token_address", "x402_rpc_url",
		"settle_transactions", "settle_private_key", "settle_rpc_url",
		"generator_mode", "elevenlabs_api_key", "elevenlabs_model_id",
		"log_level",
	} {
		_ = v.BindEnv(key)
	}

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field shapes and cross-field requirements.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("eth_addr_lowercase_ok", validEthAddr); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := types.ParseNetwork(c.Network); err != nil {
		return err
	}

	if c.SettleLocally() && c.SettlePrivateKey == "" {
		return fmt.Errorf("settle_transactions is enabled with facilitator %s but settle_private_key is not set", c.FacilitatorURL)
	}

	if c.GeneratorMode == "elevenlabs" && c.ElevenLabsAPIKey == "" {
		return fmt.Errorf("generator_mode is elevenlabs but elevenlabs_api_key is not set")
	}

	return nil
}

// SettleLocally reports whether this process should broadcast
// settlements itself, taking the managed-facilitator skip into account.
func (c *Config) SettleLocally() bool {
	return settlement.ShouldSettleLocally(c.SettleTransactions, c.FacilitatorURL)
}

// SettlementRPCURL returns the endpoint settlement transactions go to:
// the dedicated override if set, otherwise the general RPC override,
// otherwise empty (caller falls back to the chain default).
func (c *Config) SettlementRPCURL() string {
	if c.SettleRPCURL != "" {
		return c.SettleRPCURL
	}
	return c.RPCURL
}

// validEthAddr accepts a 20-byte hex address in any case.
func validEthAddr(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return false
	}
	for _, r := range addr[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed quota.yaml
var quotaYAML []byte

//go:embed pricing.yaml
var pricingYAML []byte

// QuotaLimits maps service -> action -> daily limit.
type QuotaLimits map[string]map[string]int

// ModelPricing is the per-model cost entry, USD per 1M tokens plus an
// optional flat per-request fee.
type ModelPricing struct {
	InputPerMTok  float64 `yaml:"inputPerMTok"`
	OutputPerMTok float64 `yaml:"outputPerMTok"`
	PerRequest    float64 `yaml:"perRequest"`
}

// PricingTable maps provider -> model -> pricing. The "_default" model key is
// the provider-level fallback.
type PricingTable map[string]map[string]ModelPricing

func LoadQuotaLimits() (QuotaLimits, error) {
	var limits QuotaLimits
	if err := yaml.Unmarshal(quotaYAML, &limits); err != nil {
		return nil, fmt.Errorf("Failed to parse quota limits: %w", err)
	}
	if len(limits) == 0 {
		return nil, fmt.Errorf("Quota limit table is empty")
	}
	for service, actions := range limits {
		for action, limit := range actions {
			if limit <= 0 {
				return nil, fmt.Errorf("Invalid limit for %s.%s: %d", service, action, limit)
			}
		}
	}
	return limits, nil
}

func LoadPricingTable() (PricingTable, error) {
	var table PricingTable
	if err := yaml.Unmarshal(pricingYAML, &table); err != nil {
		return nil, fmt.Errorf("Failed to parse pricing table: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("Pricing table is empty")
	}
	return table, nil
}

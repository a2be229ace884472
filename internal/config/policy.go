package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// RecognitionPolicy is the operator-tunable part of the engine:
// reconciliation slack and the ledger accounts journal exports hit.
// It lives in a mounted policy file and reloads without a restart.
type RecognitionPolicy struct {
	ReconciliationTolerance string        `mapstructure:"reconciliationTolerance"`
	Posting                 PostingPolicy `mapstructure:"posting"`
}

type PostingPolicy struct {
	DefaultProvider string `mapstructure:"defaultProvider"`
	DeferredAccount string `mapstructure:"deferredAccount"`
	RevenueAccount  string `mapstructure:"revenueAccount"`
}

func DefaultRecognitionPolicy() RecognitionPolicy {
	return RecognitionPolicy{
		ReconciliationTolerance: "0.01",
		Posting: PostingPolicy{
			DefaultProvider: "quickbooks",
			DeferredAccount: "2300",
			RevenueAccount:  "4000",
		},
	}
}

// Tolerance parses the configured reconciliation tolerance, falling
// back to one cent on any unusable value.
func (p RecognitionPolicy) Tolerance() decimal.Decimal {
	tolerance, err := decimal.NewFromString(strings.TrimSpace(p.ReconciliationTolerance))
	if err != nil || !tolerance.IsPositive() {
		return decimal.New(1, -2)
	}
	return tolerance
}

type PolicyHolder struct {
	current atomic.Value // holds RecognitionPolicy
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/revrec/config") // Volume-mounted config
	v.AddConfigPath("/etc/revrec")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("REVREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultRecognitionPolicy()
		v.SetDefault("recognition.reconciliationTolerance", defaults.ReconciliationTolerance)
		v.SetDefault("recognition.posting", defaults.Posting)
	}

	var policy RecognitionPolicy
	if err := v.UnmarshalKey("recognition", &policy); err != nil {
		return nil, err
	}
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RecognitionPolicy
		if err := v.UnmarshalKey("recognition", &updated); err != nil {
			log.Printf("[policy] reload failed: %v", err)
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Printf("[policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPolicyHolder wraps a fixed policy that never reloads.
func NewStaticPolicyHolder(policy RecognitionPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func (h *PolicyHolder) Get() RecognitionPolicy {
	return h.current.Load().(RecognitionPolicy)
}

func validatePolicy(policy RecognitionPolicy) error {
	tolerance, err := decimal.NewFromString(strings.TrimSpace(policy.ReconciliationTolerance))
	if err != nil || !tolerance.IsPositive() {
		return errors.New("recognition.reconciliationTolerance must be a positive decimal")
	}
	if strings.TrimSpace(policy.Posting.DeferredAccount) == "" {
		return errors.New("recognition.posting.deferredAccount cannot be empty")
	}
	if strings.TrimSpace(policy.Posting.RevenueAccount) == "" {
		return errors.New("recognition.posting.revenueAccount cannot be empty")
	}
	return nil
}

package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CampusPolicy carries operator-tunable knobs that may change without a
// redeploy: application numbering format, exam fee defaults and endpoint
// rate limits.
type CampusPolicy struct {
	ApplicationPrefix string  `mapstructure:"applicationPrefix"`
	SequencePadWidth  int     `mapstructure:"sequencePadWidth"`
	DefaultSubjectFee int64   `mapstructure:"defaultSubjectFee"`
	RegistrationRate  float64 `mapstructure:"registrationRate"`
	RegistrationBurst int     `mapstructure:"registrationBurst"`
	AllocationRate    float64 `mapstructure:"allocationRate"`
	AllocationBurst   int     `mapstructure:"allocationBurst"`
}

func DefaultCampusPolicy() CampusPolicy {
	return CampusPolicy{
		ApplicationPrefix: "APP",
		SequencePadWidth:  4,
		DefaultSubjectFee: 100,
		RegistrationRate:  50,
		RegistrationBurst: 100,
		AllocationRate:    20,
		AllocationBurst:   40,
	}
}

// PolicyHolder serves the current policy and hot-reloads it when the backing
// file changes.
type PolicyHolder struct {
	current atomic.Value // holds CampusPolicy
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("campus")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/campus/config")
	v.AddConfigPath("/etc/campus")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultCampusPolicy()
		v.SetDefault("policy.applicationPrefix", defaults.ApplicationPrefix)
		v.SetDefault("policy.sequencePadWidth", defaults.SequencePadWidth)
		v.SetDefault("policy.defaultSubjectFee", defaults.DefaultSubjectFee)
		v.SetDefault("policy.registrationRate", defaults.RegistrationRate)
		v.SetDefault("policy.registrationBurst", defaults.RegistrationBurst)
		v.SetDefault("policy.allocationRate", defaults.AllocationRate)
		v.SetDefault("policy.allocationBurst", defaults.AllocationBurst)
	}

	var policy CampusPolicy
	if err := v.UnmarshalKey("policy", &policy); err != nil {
		return nil, err
	}
	if err := validateCampusPolicy(policy); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CampusPolicy
		if err := v.UnmarshalKey("policy", &updated); err != nil {
			log.Printf("[campus-policy] reload failed: %v", err)
			return
		}
		if err := validateCampusPolicy(updated); err != nil {
			log.Printf("[campus-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[campus-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PolicyHolder) Get() CampusPolicy {
	return h.current.Load().(CampusPolicy)
}

// StaticPolicyHolder returns a holder pinned to the given policy. Used by
// tests and by callers that do not want file-backed reloads.
func StaticPolicyHolder(policy CampusPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func validateCampusPolicy(policy CampusPolicy) error {
	if strings.TrimSpace(policy.ApplicationPrefix) == "" {
		return errors.New("policy.applicationPrefix cannot be empty")
	}
	if policy.SequencePadWidth <= 0 {
		return errors.New("policy.sequencePadWidth must be positive")
	}
	if policy.DefaultSubjectFee < 0 {
		return errors.New("policy.defaultSubjectFee cannot be negative")
	}
	return nil
}

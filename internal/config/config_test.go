package config

import (
	"os"
	"sync"
	"testing"
)

func TestGetCurrentEnvironment(t *testing.T) {
	tests := []struct {
		name            string
		want            string
		variable        string
		environmentFlag string
	}{{
		name:            "should default if not provided",
		want:            DefaultEnvironment,
		variable:        "environment",
		environmentFlag: "",
	}, {
		name:            "should return staging if environment is set to staging",
		want:            StagingEnvironment,
		variable:        "environment",
		environmentFlag: "staging",
	}, {
		name:            "should return production if environment is set to production",
		want:            ProductionEnvironment,
		variable:        "environment",
		environmentFlag: "production",
	}, {
		name:            "should return development if environment is set to development",
		want:            DevelopmentEnvironment,
		variable:        "environment",
		environmentFlag: "development",
	}, {
		name:            "should default if value is defined but not production or staging",
		want:            DefaultEnvironment,
		variable:        "environment",
		environmentFlag: "invalid-value",
	}, {
		name:            "should read the prefixed variable ignoring case",
		want:            ProductionEnvironment,
		variable:        "JUDGE_ENVIRONMENT",
		environmentFlag: "Production",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				os.Unsetenv(tt.variable)
				currentEnvironment = ""
			}()

			envOnce = sync.Once{}
			_ = os.Setenv(tt.variable, tt.environmentFlag)

			if got := GetCurrentEnvironment(); got != tt.want {
				t.Errorf("GetCurrentEnvironment() = %v, want %v", got, tt.want)
			}
		})
	}
}

package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationConfig(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
	}{
		{name: "no options", dsn: "user:pass@tcp(localhost:3306)/budgetly"},
		{name: "parseTime off", dsn: "user:pass@tcp(localhost:3306)/budgetly?parseTime=false&loc=Local"},
		{name: "already set", dsn: "user:pass@tcp(localhost:3306)/budgetly?parseTime=true&loc=UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := applicationConfig(tt.dsn)
			require.NoError(t, err)
			assert.True(t, cfg.ParseTime)
			assert.Equal(t, time.UTC, cfg.Loc)
			assert.Equal(t, "budgetly", cfg.DBName)
			assert.Contains(t, cfg.FormatDSN(), "parseTime=true")
		})
	}

	_, err := applicationConfig("not a dsn")
	require.Error(t, err)
}

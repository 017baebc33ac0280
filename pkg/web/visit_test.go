package web

import (
	"testing"

	"github.com/consentry/consentry/db"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestNewVisitorRetriesFromConfigWhenUnset(t *testing.T) {
	viper.Set("navigation.max_retries", 3)
	defer viper.Set("navigation.max_retries", nil)

	visitor := NewVisitor(db.DefaultScanParams())
	assert.Equal(t, 3, visitor.MaxRetries)
}

func TestNewVisitorExplicitZeroDisablesRetries(t *testing.T) {
	viper.Set("navigation.max_retries", 3)
	defer viper.Set("navigation.max_retries", nil)

	params := db.DefaultScanParams()
	zero := 0
	params.MaxRetries = &zero
	visitor := NewVisitor(params)
	assert.Equal(t, 0, visitor.MaxRetries)
}

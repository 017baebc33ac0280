package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/consentry/")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Warn().Msg("Config file not found")
		} else {
			log.Panic().Err(err).Msg("Fatal error reading config file")
		}
	}
	SetDefaultConfig()
}

func SetDefaultConfig() {
	// Navigation
	viper.SetDefault("navigation.timeout", 60)
	viper.SetDefault("navigation.max_retries", 3)
	viper.SetDefault("navigation.user_agent", "")
	viper.SetDefault("navigation.proxy", "")

	// Browser pool
	viper.SetDefault("scan.browser.headless", true)
	viper.SetDefault("scan.browser.disable_gpu", true)
	viper.SetDefault("scan.browser.pool_size", 5)
	viper.SetDefault("scan.browser.warm_instances", 2)
	viper.SetDefault("scan.browser.max_age", 3600)
	viper.SetDefault("scan.browser.max_idle", 300)
	viper.SetDefault("scan.browser.max_uses", 100)
	viper.SetDefault("scan.browser.health_check_interval", 60)

	// Scan
	viper.SetDefault("scan.concurrency.max_scans", 10)
	viper.SetDefault("scan.batch_size", 1000)

	// Scheduler
	viper.SetDefault("scheduler.watcher.interval", 60)
	viper.SetDefault("scheduler.max_workers", 5)
	viper.SetDefault("scheduler.misfire_grace", 300)
	viper.SetDefault("scheduler.lock.ttl", 900)
	viper.SetDefault("scheduler.history.retention_days", 30)

	// Classifier
	viper.SetDefault("classifier.rules.path", "")
	viper.SetDefault("classifier.gvl.url", "https://vendor-list.consensu.org/v3/vendor-list.json")
	viper.SetDefault("classifier.gvl.cache", "gvl-cache.json")
	viper.SetDefault("classifier.ml.endpoint", "")
	viper.SetDefault("classifier.ml.timeout", 5)

	// External schedule source
	viper.SetDefault("sync.source.url", "")
	viper.SetDefault("sync.source.timeout", 30)

	// API
	viper.SetDefault("api.listen.host", "")
	viper.SetDefault("api.listen.port", 8020)
	viper.SetDefault("api.cors.origins", []string{"*"})
	viper.SetDefault("api.stream.poll_interval", 2)
}

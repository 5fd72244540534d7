// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "HeadsUp")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "headsup.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", time.Sunday)

	viper.SetDefault("notification.debug", false)
	viper.SetDefault("notification.leadtime", 72*time.Hour)
	viper.SetDefault("notification.firehour", 9)
	viper.SetDefault("notification.timezone", "")
	viper.SetDefault("notification.dedupwindow", 5*time.Minute)
	viper.SetDefault("notification.reconcileschedule", "@every 15m")
	viper.SetDefault("notification.maxbanners", 0)
	viper.SetDefault("notification.log.enabled", false)
	viper.SetDefault("notification.log.path", "notification.log")

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.sqlite.path", "headsup.db")
	viper.SetDefault("store.mysql.username", "headsup")
	viper.SetDefault("store.mysql.password", "secret")
	viper.SetDefault("store.mysql.database", "headsup")
	viper.SetDefault("store.mysql.host", "localhost")
	viper.SetDefault("store.mysql.port", "3306")
	viper.SetDefault("store.deliveredretention", 7*24*time.Hour)
	viper.SetDefault("store.authorization.mode", "prompt-grant")

	viper.SetDefault("delivery.enabled", false)
	viper.SetDefault("delivery.ratelimit", 1.0)
	viper.SetDefault("delivery.burst", 5)
	viper.SetDefault("delivery.timeout", 30*time.Second)
	viper.SetDefault("delivery.targets", []DeliveryTarget{})

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
	viper.SetDefault("sentry.debug", false)
}

package conf

import "github.com/spf13/viper"

// bindEnvVars wires PLOOPBACK_-prefixed environment variables over the
// config file, the way the teacher's config layer overlays BIRDNET_ vars.
func bindEnvVars() {
	viper.SetEnvPrefix("PLOOPBACK")
	viper.AutomaticEnv()
}

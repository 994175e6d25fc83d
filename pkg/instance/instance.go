package instance

import "github.com/angelmondragon/ghanadude-checkout/pkg/env"

// ID identifies this process in logs: the Heroku dyno name, then the
// container hostname, else "local".
func ID() string {
	return env.First("local", "DYNO", "HOSTNAME")
}

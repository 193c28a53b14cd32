package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(buildInfo) }

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Always 1; labels carry the version and commit of the running ticketgate station.",
	},
	[]string{"version", "commit"},
)

// SetBuildInfo publishes the binary's version stamp. Empty values read as "unknown";
// only the latest stamp is kept.
func SetBuildInfo(version, commit string) {
	if norm(version) == "" {
		version = "unknown"
	}
	if norm(commit) == "" {
		commit = "unknown"
	}
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit).Set(1)
}

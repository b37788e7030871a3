package cmd

import (
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/nitinp/i2cfile/i2cparam"
	"github.com/nitinp/i2cfile/transfer"
)

// writeMetrics renders the transfer result in Prometheus text exposition
// format, suitable for the node_exporter textfile collector. Each run gets
// a fresh uuid label so successive transfers are distinguishable.
func writeMetrics(path string, result *transfer.Result, bus i2cparam.Bus, chip i2cparam.ChipAddress) error {
	labels := prometheus.Labels{
		"mode":   result.Mode,
		"bus":    bus.String(),
		"chip":   chip.String(),
		"run_id": uuid.NewString(),
	}

	bytesTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "i2cfile",
		Name:        "transfer_bytes",
		Help:        "Bytes moved by the last transfer",
		ConstLabels: labels,
	})
	bytesTotal.Set(float64(result.Bytes))

	writesTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "i2cfile",
		Name:        "device_writes",
		Help:        "Single-byte device writes issued by the last transfer",
		ConstLabels: labels,
	})
	writesTotal.Set(float64(result.Writes))

	elapsed := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "i2cfile",
		Name:        "transfer_duration_seconds",
		Help:        "Wall time of the last transfer",
		ConstLabels: labels,
	})
	elapsed.Set(result.Elapsed.Seconds())

	verified := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "i2cfile",
		Name:        "transfer_verified",
		Help:        "Whether the last transfer passed read-back verification",
		ConstLabels: labels,
	})
	if result.Verified {
		verified.Set(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(bytesTotal, writesTotal, elapsed, verified)

	families, err := reg.Gather()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}

	return nil
}

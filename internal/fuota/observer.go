package fuota

import (
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-fuota-node/internal/fragdecoder"
	"github.com/brocaar/lorawan"
)

// logObserver logs the decoder notifications of a device session.
type logObserver struct {
	devEUI    lorawan.EUI64
	fragIndex uint8
}

func (o logObserver) OnProgress(received, total uint16, fragmentSize uint8, lost uint16) {
	log.WithFields(log.Fields{
		"dev_eui":       o.devEUI,
		"frag_index":    o.fragIndex,
		"received":      received,
		"total":         total,
		"fragment_size": fragmentSize,
		"lost":          lost,
	}).Debug("fuota: fragmentation-session progress")
}

func (o logObserver) OnDone(status fragdecoder.Status, size uint32) {
	logger := log.WithFields(log.Fields{
		"dev_eui":    o.devEUI,
		"frag_index": o.fragIndex,
		"status":     status,
		"size":       size,
	})

	if status.IsFinished() {
		logger.Info("fuota: fragmentation-session finished")
	} else {
		logger.Warning("fuota: fragmentation-session failed")
	}
}

// metricsObserver counts the session results.
type metricsObserver struct{}

func (metricsObserver) OnProgress(received, total uint16, fragmentSize uint8, lost uint16) {}

func (metricsObserver) OnDone(status fragdecoder.Status, size uint32) {
	if status.IsFinished() {
		sessionDoneCounter("finished").Inc()
		fragmentRecoveredCounter().Add(float64(status.Lost()))
		return
	}
	sessionDoneCounter("error").Inc()
}

package fuota

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fuota_fragment_count",
		Help: "The number of data fragments handled (per fragment type).",
	}, []string{"type"})
	cc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fuota_command_count",
		Help: "The number of fragmentation commands handled (per command).",
	}, []string{"command"})
	ss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fuota_session_setup_count",
		Help: "The number of fragmentation sessions set up.",
	})
	sd = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fuota_session_done_count",
		Help: "The number of fragmentation sessions done (per result).",
	}, []string{"result"})
	fr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fuota_fragment_recovered_count",
		Help: "The number of lost fragments recovered from coded fragments.",
	})
	fe = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fuota_fragment_error_count",
		Help: "The number of fragmentation commands that failed to be processed.",
	})
)

func fragmentCounter(t string) prometheus.Counter {
	return fc.With(prometheus.Labels{"type": t})
}

func commandCounter(c string) prometheus.Counter {
	return cc.With(prometheus.Labels{"command": c})
}

func sessionSetupCounter() prometheus.Counter {
	return ss
}

func sessionDoneCounter(r string) prometheus.Counter {
	return sd.With(prometheus.Labels{"result": r})
}

func fragmentRecoveredCounter() prometheus.Counter {
	return fr
}

func commandErrorCounter() prometheus.Counter {
	return fe
}

// Package config holds the immutable, process-wide configuration that
// every media port shares by reference (spec §5 "Resource policy"):
// the DTLS certificate, SCTP limits, ICE port range and logging factory.
// Nothing here changes after startup.
package config

import (
	"time"

	"github.com/pion/logging"
)

// Config is built once in cmd/sfu and handed by pointer to every
// media-port runtime; it is never mutated once cmd/sfu has filled in the
// fields on top of Default and started the media ports.
type Config struct {
	// MediaPortMin/MediaPortMax bound the UDP sockets opened, one per port
	// (spec §6, default 3478-3495).
	MediaPortMin uint16
	MediaPortMax uint16

	// Certificate is the server's self-signed ECDSA P-256 DTLS identity,
	// shared by every port (spec §6).
	Certificate *Certificate

	// SCTPMaxMessageSize bounds outbound DataChannel payloads (spec §4.5/§6).
	SCTPMaxMessageSize uint32

	// CandidateIdleTimeout expires an uninstalled Candidate (spec §5, default 30s).
	CandidateIdleTimeout time.Duration

	// EndpointIdleTimeout is the extension point named in spec §5 (default 30s).
	EndpointIdleTimeout time.Duration

	// ReceiverReportInterval paces the ReceiverReport interceptor (spec §4.10/§8 scenario 5).
	ReceiverReportInterval time.Duration

	LoggerFactory logging.LoggerFactory
}

// Ports returns the sorted list of media ports this process will bind,
// used by signaling to compute port = sorted_ports[session_id % |ports|] (spec §6).
func (c *Config) Ports() []uint16 {
	ports := make([]uint16, 0, int(c.MediaPortMax)-int(c.MediaPortMin)+1)
	for p := c.MediaPortMin; p <= c.MediaPortMax; p++ {
		ports = append(ports, p)
	}
	return ports
}

// Default returns a Config with the defaults named in spec §5/§6.
func Default(loggerFactory logging.LoggerFactory) *Config {
	return &Config{
		MediaPortMin:           3478,
		MediaPortMax:           3495,
		SCTPMaxMessageSize:     262144,
		CandidateIdleTimeout:   30 * time.Second,
		EndpointIdleTimeout:    30 * time.Second,
		ReceiverReportInterval: time.Second,
		LoggerFactory:          loggerFactory,
	}
}

// Command sfu runs the server named in spec §5/§6: one self-signed DTLS
// certificate, one UDP socket per configured media port each driven by
// its own cooperative goroutine, and one HTTP front end dispatching
// offers across them by session_id mod num_ports. Modeled on the
// teacher's examples/sfu's flag-parsing, single-process CLI shape.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/logging"

	"github.com/pion/sfu/internal/config"
	"github.com/pion/sfu/internal/mediaport"
	"github.com/pion/sfu/internal/signaling"
)

func main() {
	httpAddr := flag.String("http", ":8080", "address the signaling HTTP server listens on")
	portMin := flag.Uint("port-min", 3478, "first UDP media port to bind")
	portMax := flag.Uint("port-max", 3495, "last UDP media port to bind (inclusive)")
	maxMessageSize := flag.Uint("sctp-max-message-size", 262144, "max SCTP/DataChannel message size in bytes")
	candidateIdleTimeout := flag.Duration("candidate-idle-timeout", 30*time.Second, "how long an uninstalled admission candidate stays valid")
	endpointIdleTimeout := flag.Duration("endpoint-idle-timeout", 30*time.Second, "endpoint idle timeout (stored in the config; idle endpoints are not torn down)")
	receiverReportInterval := flag.Duration("receiver-report-interval", time.Second, "interval between emitted RTCP receiver reports")
	flag.Parse()

	loggerFactory := logging.NewDefaultLoggerFactory()
	logger := loggerFactory.NewLogger("sfu")

	cert, err := config.GenerateCertificate()
	if err != nil {
		logger.Errorf("generate dtls certificate: %v", err)
		os.Exit(1)
	}

	cfg := config.Default(loggerFactory)
	cfg.Certificate = cert
	cfg.MediaPortMin = uint16(*portMin)
	cfg.MediaPortMax = uint16(*portMax)
	cfg.SCTPMaxMessageSize = uint32(*maxMessageSize)
	cfg.CandidateIdleTimeout = *candidateIdleTimeout
	cfg.EndpointIdleTimeout = *endpointIdleTimeout
	cfg.ReceiverReportInterval = *receiverReportInterval

	shutdown := make(chan struct{})
	ports := cfg.Ports()
	signalingChans := make([]chan mediaport.SignalingRequest, 0, len(ports))

	for _, portNum := range ports {
		sigCh := make(chan mediaport.SignalingRequest)
		port, err := mediaport.New(cfg, portNum, sigCh, shutdown)
		if err != nil {
			logger.Errorf("bind media port %d: %v", portNum, err)
			os.Exit(1)
		}
		signalingChans = append(signalingChans, sigCh)
		go port.Run()
		logger.Infof("media port %d bound", portNum)
	}

	srv := signaling.New(signalingChans, loggerFactory)
	httpServer := &http.Server{Addr: *httpAddr, Handler: srv.Handler()}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("signaling http server: %v", err)
		}
	}()
	logger.Infof("signaling http server listening on %s", *httpAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	close(shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
}

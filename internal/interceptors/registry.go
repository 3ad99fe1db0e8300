// Registry builds the per-channel interceptor chain (spec §4.10 "The
// Registry builds a chain per channel"), grounded on the teacher's
// InterceptorRegistry/RegisterDefaultInterceptors but pointed at the real
// github.com/pion/interceptor ecosystem package instead of the teacher's
// own legacy pkg/interceptor fork.
package interceptors

import (
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/interceptor/pkg/twcc"
	"github.com/pion/logging"
)

// Chain is the per-channel pipeline: the spec's concrete ReceiverReport
// plus the extension-point NACK/TWCC interceptors from pion/interceptor
// (spec §4.10 "Nack and Twcc are extension points").
type Chain struct {
	ReceiverReport *ReceiverReport
	SenderReport   SenderReport

	nackResponder *nack.ResponderInterceptor
	nackGenerator *nack.GeneratorInterceptor
	twccExt       *twcc.HeaderExtensionInterceptor
}

// Registry builds one Chain per channel (spec §4.10).
type Registry struct {
	ReceiverReportInterval time.Duration
	LoggerFactory          logging.LoggerFactory
}

// Build constructs a fresh Chain for one Transport/channel.
func (r *Registry) Build() (*Chain, error) {
	c := &Chain{ReceiverReport: NewReceiverReport(r.ReceiverReportInterval)}

	responder, err := nack.NewResponderInterceptor(nack.ResponderSize(8192), nack.ResponderLog(r.loggerFactory().NewLogger("nack_responder")))
	if err != nil {
		return nil, err
	}
	c.nackResponder = responder

	generator, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return nil, err
	}
	c.nackGenerator = generator

	ext, err := twcc.NewHeaderExtensionInterceptor()
	if err != nil {
		return nil, err
	}
	c.twccExt = ext

	return c, nil
}

func (r *Registry) loggerFactory() logging.LoggerFactory {
	if r.LoggerFactory != nil {
		return r.LoggerFactory
	}
	return logging.NewDefaultLoggerFactory()
}

// interceptorChain exposes the underlying pion/interceptor.Interceptor
// instances, for a future RTP read/write pipeline to wrap
// (spec §4.10's Nack/Twcc extension points; not yet driven by the
// forwarding path, which fans out packets unmodified per spec §4.3).
func (c *Chain) interceptorChain() []interceptor.Interceptor {
	return []interceptor.Interceptor{c.nackResponder, c.nackGenerator, c.twccExt}
}

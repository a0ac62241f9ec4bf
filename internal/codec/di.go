package codec

import (
	"log"

	"github.com/lukasbauer/tonebridge/internal/metrics"
	"github.com/samber/do/v2"
)

// RegisterDI provides both gateways. A GatewayConfig and a *log.Logger must
// already be registered.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*BatchGateway, error) {
		cfg := do.MustInvoke[GatewayConfig](i)
		logger := do.MustInvoke[*log.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewBatchGateway(cfg, logger, m), nil
	})
	do.Provide(injector, func(i do.Injector) (*StreamingGateway, error) {
		cfg := do.MustInvoke[GatewayConfig](i)
		logger := do.MustInvoke[*log.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewStreamingGateway(cfg, logger, m), nil
	})
}

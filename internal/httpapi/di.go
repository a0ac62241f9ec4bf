package httpapi

import (
	"log"
	"net/http"

	"github.com/lukasbauer/tonebridge/internal/codec"
	"github.com/lukasbauer/tonebridge/internal/config"
	"github.com/lukasbauer/tonebridge/internal/metrics"
	"github.com/lukasbauer/tonebridge/internal/relay"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (http.Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		logger := do.MustInvoke[*log.Logger](i)
		batch := do.MustInvoke[*codec.BatchGateway](i)
		stream := do.MustInvoke[*codec.StreamingGateway](i)
		sessions := do.MustInvoke[*relay.Registry](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		routerCfg := RouterConfig{
			Tools:          cfg.Tools(),
			MaxUploadBytes: cfg.MaxUploadBytes,
			Relay: relay.Config{
				Tools:     cfg.Tools(),
				QueueSize: cfg.RelayQueueSize,
			},
		}
		return NewRouter(routerCfg, logger, batch, stream, sessions, m), nil
	})
}

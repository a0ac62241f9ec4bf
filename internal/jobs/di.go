package jobs

import (
	"log"

	"github.com/lukasbauer/tonebridge/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*WorkspaceSweeper, error) {
		cfg := do.MustInvoke[*config.Config](i)
		logger := do.MustInvoke[*log.Logger](i)
		return NewWorkspaceSweeper(cfg.WorkDir, cfg.WorkspaceMaxAge, cfg.WorkspaceSweepInterval, logger), nil
	})
}

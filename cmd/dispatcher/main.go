// Command dispatcher runs the transactional outbox dispatcher and the
// idempotency key garbage collector as two concurrent background
// processes sharing one process-wide connection set.
package main

import (
	"log"

	"github.com/ledgerflow/paymentcore/common"
	"github.com/ledgerflow/paymentcore/internal/bootstrap"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("build app: %v", err)
	}

	defer func() {
		if cerr := app.Close(); cerr != nil {
			app.Logger.Errorf("close app: %v", cerr)
		}
	}()

	defer app.Logger.Sync() //nolint:errcheck

	launcher := common.NewLauncher(
		common.WithLogger(app.Logger),
		common.RunApp("outbox-dispatcher", app.Dispatcher),
		common.RunApp("idempotency-gc", app.IdempotencyGC),
	)

	launcher.Run()
}

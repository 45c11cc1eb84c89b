// Command app runs the HTTP front door: the RPC surface (authorize,
// get-payment, get-balance), the rate-limit gate, and the health and
// metrics endpoints.
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

	frontDoor := &bootstrap.HTTPFrontDoor{Router: app.Router, Addr: cfg.HTTPPort}

	launcher := common.NewLauncher(
		common.WithLogger(app.Logger),
		common.RunApp("http", frontDoor),
	)

	launcher.Run()
}

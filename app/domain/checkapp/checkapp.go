// Package checkapp maintains the app layer api for the check domain.
package checkapp

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lodgehub/lodgehub/app/sdk/errs"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb"
	"github.com/lodgehub/lodgehub/business/sdk/web"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

type app struct {
	build string
	log   *logger.Logger
	db    *sqlx.DB
}

func newApp(build string, log *logger.Logger, db *sqlx.DB) *app {
	return &app{
		build: build,
		log:   log,
		db:    db,
	}
}

// readiness checks if the database is ready and the service can accept
// traffic.
func (a *app) readiness(ctx context.Context, _ *http.Request) web.Encoder {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqldb.StatusCheck(ctx, a.db); err != nil {
		a.log.Info(ctx, "readiness failure", "err", err)
		return errs.New(errs.Internal, err)
	}

	return Status{Status: "OK"}
}

// liveness returns simple status info. The health check service uses this
// to decide whether to restart the pod.
func (a *app) liveness(_ context.Context, _ *http.Request) web.Encoder {
	host, err := os.Hostname()
	if err != nil {
		host = "unavailable"
	}

	return Info{
		Status:     "up",
		Build:      a.build,
		Host:       host,
		GoMaxProcs: runtime.GOMAXPROCS(0),
	}
}

// Status represents the readiness outcome.
type Status struct {
	Status string `json:"status"`
}

// Encode implements the web.Encoder interface.
func (s Status) Encode() ([]byte, string, error) {
	data, err := json.Marshal(s)
	return data, "application/json", err
}

// Info represents liveness details.
type Info struct {
	Status     string `json:"status"`
	Build      string `json:"build"`
	Host       string `json:"host"`
	GoMaxProcs int    `json:"goMaxProcs"`
}

// Encode implements the web.Encoder interface.
func (i Info) Encode() ([]byte, string, error) {
	data, err := json.Marshal(i)
	return data, "application/json", err
}

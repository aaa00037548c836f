package persistence

import (
	"errors"

	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
	"github.com/flarexio/marketfit/persistence/db"
	"github.com/flarexio/marketfit/persistence/inmem"
	"github.com/flarexio/marketfit/persistence/kv"
)

func NewReportRepository(cfg conf.Persistence) (opportunity.Repository, error) {
	switch cfg.Driver {
	case conf.SQLite:
		return db.NewReportRepository(cfg)
	case conf.BadgerDB:
		return kv.NewReportRepository(cfg)
	case conf.InMem:
		return inmem.NewReportRepository()
	default:
		return nil, errors.New("driver not supported")
	}
}

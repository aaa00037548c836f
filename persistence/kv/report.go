package kv

import (
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
)

var reportPrefix = []byte("reports/")

func NewReportRepository(cfg conf.Persistence) (opportunity.Repository, error) {
	opts := badger.DefaultOptions(cfg.Host + "/" + cfg.Name)
	if cfg.InMem {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	repo := new(reportRepository)
	repo.db = db
	return repo, nil
}

type reportRepository struct {
	db *badger.DB
}

// ulids sort by creation time, so key order is report order
func reportKey(id opportunity.ReportID) []byte {
	return append(append([]byte{}, reportPrefix...), id.String()...)
}

func (repo *reportRepository) Store(r *opportunity.Report) error {
	bs, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return repo.db.Update(func(txn *badger.Txn) error {
		return txn.Set(reportKey(r.ID), bs)
	})
}

func (repo *reportRepository) Delete(r *opportunity.Report) error {
	return repo.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(reportKey(r.ID))
	})
}

func (repo *reportRepository) List(limit int) ([]*opportunity.Report, error) {
	reports := make([]*opportunity.Report, 0)

	err := repo.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = reportPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, reportPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(reportPrefix); it.Next() {
			if limit > 0 && len(reports) >= limit {
				break
			}

			var r *opportunity.Report
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return err
			}

			reports = append(reports, r)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return reports, nil
}

func (repo *reportRepository) Find(id opportunity.ReportID) (*opportunity.Report, error) {
	var r *opportunity.Report

	err := repo.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(reportKey(id))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})

	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, opportunity.ErrReportNotFound
		}

		return nil, err
	}

	return r, nil
}

func (repo *reportRepository) Close() error {
	return repo.db.Close()
}

func (repo *reportRepository) Truncate() error {
	return repo.db.DropPrefix(reportPrefix)
}

package inmem

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/flarexio/marketfit/opportunity"
)

func NewReportRepository() (opportunity.Repository, error) {
	return &reportRepository{
		reports: make(map[opportunity.ReportID][]byte),
	}, nil
}

// reports are kept serialized so callers never share state with the store
type reportRepository struct {
	reports map[opportunity.ReportID][]byte
	sync.RWMutex
}

func (repo *reportRepository) Store(r *opportunity.Report) error {
	bs, err := json.Marshal(r)
	if err != nil {
		return err
	}

	repo.Lock()
	repo.reports[r.ID] = bs
	repo.Unlock()

	return nil
}

func (repo *reportRepository) Delete(r *opportunity.Report) error {
	repo.Lock()
	delete(repo.reports, r.ID)
	repo.Unlock()

	return nil
}

func (repo *reportRepository) List(limit int) ([]*opportunity.Report, error) {
	repo.RLock()
	defer repo.RUnlock()

	ids := make([]opportunity.ReportID, 0, len(repo.reports))
	for id := range repo.reports {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() > ids[j].String()
	})

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	reports := make([]*opportunity.Report, 0, len(ids))
	for _, id := range ids {
		var r *opportunity.Report
		if err := json.Unmarshal(repo.reports[id], &r); err != nil {
			return nil, err
		}

		reports = append(reports, r)
	}

	return reports, nil
}

func (repo *reportRepository) Find(id opportunity.ReportID) (*opportunity.Report, error) {
	repo.RLock()
	bs, ok := repo.reports[id]
	repo.RUnlock()

	if !ok {
		return nil, opportunity.ErrReportNotFound
	}

	var r *opportunity.Report
	if err := json.Unmarshal(bs, &r); err != nil {
		return nil, err
	}

	return r, nil
}

func (repo *reportRepository) Close() error {
	return nil
}

func (repo *reportRepository) Truncate() error {
	repo.Lock()
	repo.reports = make(map[opportunity.ReportID][]byte)
	repo.Unlock()

	return nil
}

package db

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
)

func NewReportRepository(cfg conf.Persistence) (opportunity.Repository, error) {
	filename := cfg.Host + "/" + cfg.Name + ".db"
	if cfg.InMem {
		filename = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(filename), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&Report{}, &Idea{},
	); err != nil {
		return nil, err
	}

	repo := new(reportRepository)
	repo.db = db
	return repo, nil
}

type reportRepository struct {
	db *gorm.DB
}

func orderedIdeas(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (repo *reportRepository) Store(r *opportunity.Report) error {
	report := NewReport(r) // convert Domain to Data model

	return repo.db.Transaction(func(tx *gorm.DB) error {
		// First, replace existing ideas
		if err := tx.
			Where("report_id = ?", report.ID).
			Delete(&Idea{}).
			Error; err != nil {
			return err
		}

		// Then, save the report
		return tx.Save(report).Error
	})
}

func (repo *reportRepository) Delete(r *opportunity.Report) error {
	report := NewReport(r) // convert Domain to Data model

	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("report_id = ?", report.ID).
			Delete(&Idea{}).
			Error; err != nil {
			return err
		}

		return tx.Delete(&Report{}, "id = ?", report.ID).Error
	})
}

func (repo *reportRepository) List(limit int) ([]*opportunity.Report, error) {
	var reports []*Report

	query := repo.db.Preload("Ideas", orderedIdeas).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&reports).Error; err != nil {
		return nil, err
	}

	results := make([]*opportunity.Report, 0, len(reports))
	for _, r := range reports {
		results = append(results, r.reconstitute())
	}

	return results, nil
}

func (repo *reportRepository) Find(id opportunity.ReportID) (*opportunity.Report, error) {
	var r *Report

	result := repo.db.Preload("Ideas", orderedIdeas).Take(&r, "id = ?", id.String())
	if err := result.Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, opportunity.ErrReportNotFound
		}

		return nil, err
	}

	return r.reconstitute(), nil
}

func (repo *reportRepository) Close() error {
	db, err := repo.db.DB()
	if err != nil {
		return err
	}

	return db.Close()
}

func (repo *reportRepository) Truncate() error {
	err := repo.db.Exec("DELETE FROM ideas").Error
	if err != nil {
		return err
	}

	return repo.db.Exec("DELETE FROM reports").Error
}

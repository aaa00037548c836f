package db

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/flarexio/core/model"
	"github.com/flarexio/marketfit/opportunity"
)

// DataModel mirrors model.Model with a soft delete column.
type DataModel struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

type Report struct {
	ID         string `gorm:"primaryKey"`
	Source     string
	Subreddits string
	AppName    string
	Platform   string
	RawCount   int
	Ideas      []*Idea `gorm:"foreignKey:ReportID"`
	DataModel
}

type Idea struct {
	ID           uint   `gorm:"primaryKey"`
	ReportID     string `gorm:"index"`
	Position     int
	Name         string
	Pitch        string
	SourceText   string
	SourceURL    string
	SourceOrigin string
}

func NewReport(r *opportunity.Report) *Report {
	subreddits, _ := json.Marshal(r.Subreddits)

	ideas := make([]*Idea, len(r.Ideas))
	for i, idea := range r.Ideas {
		ideas[i] = &Idea{
			ReportID:     r.ID.String(),
			Position:     i,
			Name:         idea.Name,
			Pitch:        idea.Pitch,
			SourceText:   idea.SourceText,
			SourceURL:    idea.SourceURL,
			SourceOrigin: idea.SourceOrigin,
		}
	}

	report := &Report{
		ID:         r.ID.String(),
		Source:     r.Source.String(),
		Subreddits: string(subreddits),
		AppName:    r.AppName,
		Platform:   string(r.Platform),
		RawCount:   r.RawCount,
		Ideas:      ideas,
		DataModel: DataModel{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
	}

	if !r.DeletedAt.IsZero() {
		report.DeletedAt = gorm.DeletedAt{Time: r.DeletedAt, Valid: true}
	}

	return report
}

func (r *Report) reconstitute() *opportunity.Report {
	id, _ := opportunity.ParseID(r.ID)
	source, _ := opportunity.ParseSource(r.Source)

	var subreddits []string
	if r.Subreddits != "" {
		json.Unmarshal([]byte(r.Subreddits), &subreddits)
	}

	ideas := make([]*opportunity.Idea, len(r.Ideas))
	for i, idea := range r.Ideas {
		ideas[i] = &opportunity.Idea{
			Name:         idea.Name,
			Pitch:        idea.Pitch,
			SourceText:   idea.SourceText,
			SourceURL:    idea.SourceURL,
			SourceOrigin: idea.SourceOrigin,
		}
	}

	var deletedAt time.Time
	if r.DeletedAt.Valid {
		deletedAt = r.DeletedAt.Time
	}

	return &opportunity.Report{
		ID:         id,
		Source:     source,
		Subreddits: subreddits,
		AppName:    r.AppName,
		Platform:   opportunity.Platform(r.Platform),
		RawCount:   r.RawCount,
		Ideas:      ideas,
		Model: model.Model{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			DeletedAt: deletedAt,
		},
	}
}

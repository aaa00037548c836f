package opportunity

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/flarexio/core/model"
)

var (
	ErrReportNotFound = errors.New("report not found")
)

type ReportID ulid.ULID

func MakeID() ReportID {
	return ReportID(ulid.Make())
}

func ParseID(id string) (ReportID, error) {
	reportID, err := ulid.Parse(id)
	if err != nil {
		return ReportID{}, err
	}
	return ReportID(reportID), nil
}

func (id ReportID) Bytes() []byte {
	return id[:]
}

func (id ReportID) String() string {
	return ulid.ULID(id).String()
}

func (id ReportID) Time() time.Time {
	ms := ulid.ULID(id).Time()
	return ulid.Time(ms)
}

func (id ReportID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *ReportID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	reportID, err := ParseID(s)
	if err != nil {
		return err
	}

	*id = reportID
	return nil
}

// Report is the outcome of one idea generation run.
type Report struct {
	ID         ReportID `json:"id"`
	Source     Source   `json:"source"`
	Subreddits []string `json:"subreddits,omitempty"`
	AppName    string   `json:"app_name,omitempty"`
	Platform   Platform `json:"platform,omitempty"`
	RawCount   int      `json:"raw_count"`
	Ideas      []*Idea  `json:"ideas"`
	model.Model
}

func NewReport(source Source) *Report {
	id := MakeID()

	return &Report{
		ID:     id,
		Source: source,
		Ideas:  make([]*Idea, 0),
		Model: model.Model{
			CreatedAt: id.Time(),
			UpdatedAt: id.Time(),
		},
	}
}

func (r *Report) Complete(rawCount int, ideas []*Idea) {
	if ideas == nil {
		ideas = make([]*Idea, 0)
	}

	r.RawCount = rawCount
	r.Ideas = ideas
	r.UpdatedAt = time.Now()
}

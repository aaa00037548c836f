package opportunity

type Repository interface {
	// Command

	Store(r *Report) error
	Delete(r *Report) error

	// Query

	// List returns up to limit reports, newest first. A limit <= 0 returns all.
	List(limit int) ([]*Report, error)
	Find(id ReportID) (*Report, error)

	Close() error
}

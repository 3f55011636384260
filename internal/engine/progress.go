package engine

// Progress observes per-table work. total is -1 when the row count is not
// known in advance.
type Progress interface {
	Start(table string, total int)
	Row(table string, o RowOutcome)
	Done(table string)
}

type nopProgress struct{}

func (nopProgress) Start(string, int)      {}
func (nopProgress) Row(string, RowOutcome) {}
func (nopProgress) Done(string)            {}

func progressOrNop(p Progress) Progress {
	if p == nil {
		return nopProgress{}
	}
	return p
}

package remap

// Job is one generation pass: build the table from two lookup tables and write it.
type Job struct {
	Events EventCodes
	Fonts  FontCodes
	Limit  int // entries; DefaultLimit when 0
	Target Target
	Image  Image

	// OnMiss is called once per unmapped character, in index order, before the
	// table is written.
	OnMiss func(Miss)
}

// Report summarizes a finished job.
type Report struct {
	Placement Placement
	Entries   int
	Misses    []Miss
}

// Run builds and writes the table. Misses never make Run fail; errors come from
// resolving or writing the target only.
func (j Job) Run() (Report, error) {
	limit := j.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	table, misses := Build(j.Events, j.Fonts, limit)
	for _, m := range misses {
		tracer().Debugf("miss %s", m)
		if j.OnMiss != nil {
			j.OnMiss(m)
		}
	}
	rep := Report{Entries: len(table), Misses: misses}
	pl, err := Write(j.Image, j.Target, table)
	rep.Placement = pl
	return rep, err
}

package domain

import "context"

// ReportAssembler turns a run's records into a downloadable document
// artifact and returns its path. The pipeline does not format or render
// the document itself.
type ReportAssembler interface {
	Assemble(ctx context.Context, report RunReport) (string, error)
}

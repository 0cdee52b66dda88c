// Package numbering mints the human-readable record numbers: case file numbers
// ({year}{seq:04}) and inspection/complaint numbers
// ({project_code}_{case_file_number}_{IR|CM}{seq:03}).
//
// The sequence floor is derived from existing rows, and the value itself is
// taken from an atomic per-scope counter that lives in the caller's transaction,
// so two creators in the same scope cannot be handed the same number.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"compliance/internal/registry"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/sentinel"
)

// MaxSequenceDigits bounds the sequence part of a case file number. Longer
// digit runs are not sequences and are ignored by the year scan.
const MaxSequenceDigits = 9

// UnapprovedProjectCode prefixes numbers of records without a registry project.
const UnapprovedProjectCode = "UNPRVD"

// Kind selects the record class and its number prefix.
type Kind string

const (
	KindInspection Kind = "IR"
	KindComplaint  Kind = "CM"
)

// CaseFileRef is the part of a case file numbering depends on.
type CaseFileRef struct {
	ID             int64
	ProjectID      *int64
	CaseFileNumber string
}

// CaseFiles resolves active case files.
type CaseFiles interface {
	FindRef(ctx context.Context, id int64) (*CaseFileRef, error)
}

// RecordCounter counts active records of one kind in a (project, case file) scope.
type RecordCounter interface {
	CountActive(ctx context.Context, projectID *int64, caseFileID int64) (int64, error)
}

// YearScanner returns the highest sequence already used by case file numbers of a year.
type YearScanner interface {
	MaxSequenceForYear(ctx context.Context, year int) (int64, error)
}

// Sequencer hands out the next value of a scope, never lower than floor+1.
type Sequencer interface {
	Next(ctx context.Context, scope string, floor int64) (int64, error)
}

// Generator mints record numbers.
type Generator struct {
	projects  registry.Registry
	caseFiles CaseFiles
	seq       Sequencer
	logger    *slog.Logger
}

type Option func(*Generator)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

func New(projects registry.Registry, caseFiles CaseFiles, seq Sequencer, opts ...Option) *Generator {
	g := &Generator{projects: projects, caseFiles: caseFiles, seq: seq, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CaseFileNumber returns the next case file number of year.
func (g *Generator) CaseFileNumber(ctx context.Context, year int, scanner YearScanner) (string, error) {
	ctx, span := otel.Tracer("compliance/numbering").Start(ctx, "numbering.CaseFileNumber")
	defer span.End()

	floor, err := scanner.MaxSequenceForYear(ctx, year)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan case file numbers")
	}
	next, err := g.seq.Next(ctx, "case_file:"+strconv.Itoa(year), floor)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate case file sequence")
	}
	return fmt.Sprintf("%d%04d", year, next), nil
}

// RecordNumber returns the next inspection or complaint number for the scope.
// A missing case file is not found; a case file belonging to another project
// is unprocessable.
func (g *Generator) RecordNumber(ctx context.Context, kind Kind, projectID *int64, caseFileID int64, counter RecordCounter) (string, error) {
	ctx, span := otel.Tracer("compliance/numbering").Start(ctx, "numbering.RecordNumber")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(kind)), attribute.Int64("case_file_id", caseFileID))

	code, err := g.projectCode(ctx, projectID)
	if err != nil {
		return "", err
	}

	cf, err := g.caseFiles.FindRef(ctx, caseFileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "given case file doesn't exist")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case file")
	}
	if !domain.SameID(cf.ProjectID, projectID) {
		return "", dErrors.New(dErrors.CodeUnprocessable, "given project and case file don't match")
	}

	floor, err := counter.CountActive(ctx, projectID, caseFileID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to count records")
	}
	next, err := g.seq.Next(ctx, scope(kind, projectID, caseFileID), floor)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate record sequence")
	}

	number := fmt.Sprintf("%s_%s_%s%03d", code, cf.CaseFileNumber, kind, next)
	g.logger.DebugContext(ctx, "record number allocated",
		"kind", string(kind),
		"number", number,
	)
	return number, nil
}

func (g *Generator) projectCode(ctx context.Context, projectID *int64) (string, error) {
	if projectID == nil {
		return UnapprovedProjectCode, nil
	}
	project, err := g.projects.GetProject(ctx, *projectID)
	if err != nil {
		return "", err
	}
	return project.Abbreviation, nil
}

func scope(kind Kind, projectID *int64, caseFileID int64) string {
	project := "unapproved"
	if projectID != nil {
		project = strconv.FormatInt(*projectID, 10)
	}
	return fmt.Sprintf("%s:%s:%d", kind, project, caseFileID)
}

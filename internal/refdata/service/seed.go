package service

import (
	"context"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"compliance/internal/refdata/models"
	"compliance/pkg/domain"
	dErrors "compliance/pkg/domain-errors"
)

// ParseSeed decodes a YAML seed document, rejecting unknown fields.
func ParseSeed(r io.Reader) (*models.SeedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f models.SeedFile
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid seed file")
	}
	for kind := range f.Options {
		if !slices.Contains(models.OptionKinds(), models.OptionKind(kind)) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "unknown option kind "+kind)
		}
	}
	return &f, nil
}

// Seed upserts every row of f by id in one transaction. Running it twice
// leaves the same data.
func (s *Service) Seed(ctx context.Context, f *models.SeedFile) (models.SeedResult, error) {
	var res models.SeedResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		res = models.SeedResult{}
		for _, r := range f.Positions {
			if err := requireID("positions", r.ID); err != nil {
				return err
			}
			p := &models.Position{ID: r.ID, Name: r.Name, Description: r.Description, SortOrder: r.SortOrder, Audit: domain.NewAudit(ctx)}
			if err := s.store.UpsertPosition(ctx, p); err != nil {
				return fmt.Errorf("seed position %d: %w", r.ID, err)
			}
			res.Positions++
		}
		for _, r := range f.Agencies {
			if err := requireID("agencies", r.ID); err != nil {
				return err
			}
			a := &models.Agency{ID: r.ID, Name: r.Name, Abbreviation: r.Abbreviation, Audit: domain.NewAudit(ctx)}
			if err := s.store.UpsertAgency(ctx, a); err != nil {
				return fmt.Errorf("seed agency %d: %w", r.ID, err)
			}
			res.Agencies++
		}
		for _, r := range f.Topics {
			if err := requireID("topics", r.ID); err != nil {
				return err
			}
			t := &models.Topic{ID: r.ID, Name: r.Name, SortOrder: r.SortOrder, Audit: domain.NewAudit(ctx)}
			if err := s.store.UpsertTopic(ctx, t); err != nil {
				return fmt.Errorf("seed topic %d: %w", r.ID, err)
			}
			res.Topics++
		}
		for _, r := range f.RequirementSources {
			if err := requireID("requirement_sources", r.ID); err != nil {
				return err
			}
			rs := &models.RequirementSource{ID: r.ID, Name: r.Name, Description: r.Description, SortOrder: r.SortOrder, Audit: domain.NewAudit(ctx)}
			if err := s.store.UpsertRequirementSource(ctx, rs); err != nil {
				return fmt.Errorf("seed requirement source %d: %w", r.ID, err)
			}
			res.RequirementSources++
		}
		for kind, rows := range f.Options {
			for _, r := range rows {
				if err := requireID(kind, r.ID); err != nil {
					return err
				}
				o := models.KindOption{Kind: models.OptionKind(kind), Option: domain.Option{ID: r.ID, Name: r.Name, SortOrder: r.SortOrder}}
				if err := s.store.UpsertOption(ctx, o); err != nil {
					return fmt.Errorf("seed %s option %d: %w", kind, r.ID, err)
				}
				res.Options++
			}
		}
		return nil
	})
	if err != nil {
		return models.SeedResult{}, err
	}
	s.logger.InfoContext(ctx, "reference data seeded",
		"positions", res.Positions,
		"agencies", res.Agencies,
		"topics", res.Topics,
		"requirement_sources", res.RequirementSources,
		"options", res.Options,
	)
	return res, nil
}

func requireID(section string, id int64) error {
	if id <= 0 {
		return dErrors.New(dErrors.CodeValidation, section+" rows need a positive id")
	}
	return nil
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type foreignVariant struct{}

func (foreignVariant) RequirementSource() int64 { return RequirementOrder }

func TestRequirementDetailCheckVariant(t *testing.T) {
	tests := []struct {
		name    string
		source  int64
		variant Variant
		wantErr bool
	}{
		{name: "schedule b", source: RequirementScheduleB, variant: ScheduleB{ConditionNumber: "3.1"}},
		{name: "order", source: RequirementOrder, variant: Order{OrderNumber: "ORD-2"}},
		{name: "eac", source: RequirementEACCertificate, variant: EACCertificate{AmendmentNumber: "A1"}},
		{name: "source without detail", source: 4},
		{name: "missing detail", source: RequirementEACCertificate, wantErr: true},
		{name: "detail of another source", source: RequirementScheduleB, variant: Order{OrderNumber: "ORD-2"}, wantErr: true},
		{name: "detail on source without one", source: 4, variant: ScheduleB{}, wantErr: true},
		{name: "foreign type claiming a source", source: RequirementScheduleB, variant: foreignVariant{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequirementDetail{RequirementSourceID: tt.source, Variant: tt.variant}.CheckVariant()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrVariantMismatch)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVariantForMatchesItsSource(t *testing.T) {
	for _, source := range []int64{RequirementScheduleB, RequirementOrder, RequirementEACCertificate} {
		v := VariantFor(source, RequirementInput{})
		if assert.NotNil(t, v) {
			assert.Equal(t, source, v.RequirementSource())
		}
	}
	assert.Nil(t, VariantFor(4, RequirementInput{}))
}

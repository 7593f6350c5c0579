package scans

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_Overrides(t *testing.T) {
	limit := 5
	cfg, err := Profile(TypeDomainOnly, Overrides{VariationLimit: &limit, Keywords: []string{"acme"}})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.VariationLimit)
	assert.Equal(t, []Step{StepDomains}, cfg.Steps())
	assert.Equal(t, []string{"acme"}, cfg.Keywords)
}

func TestProfile_UnknownTypeIsPermanent(t *testing.T) {
	_, err := Profile("nope", Overrides{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermanent))
}

func TestStepWeight_Renormalized(t *testing.T) {
	full, _ := Profile(TypeFull, Overrides{})
	sum := 0.0
	for _, s := range full.Steps() {
		sum += full.StepWeight(s)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.40, full.StepWeight(StepDomains), 1e-9)

	quick, _ := Profile(TypeQuick, Overrides{})
	assert.InDelta(t, 40.0/65.0, quick.StepWeight(StepDomains), 1e-9)
	assert.Zero(t, quick.StepWeight(StepSocial))
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(ErrScanCancelled))
	assert.True(t, IsCancelled(errors.New("job cancelled by user")))
	assert.False(t, IsCancelled(errors.New("dns timeout")))
	assert.False(t, IsCancelled(nil))

	s := &Scan{Status: StatusFailed, Error: CancelReason}
	assert.True(t, s.Cancelled())
	s.Error = "boom"
	assert.False(t, s.Cancelled())
}

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("polygon ring not closed")
	err := New(base).
		Category(CategoryInvalidGeometry).
		Component("aggregation").
		Context("parcel_id", uint(42)).
		Build()

	assert.Equal(t, "polygon ring not closed", err.Error())
	assert.Equal(t, CategoryInvalidGeometry, err.GetCategory())
	assert.Equal(t, "aggregation", err.Component)
	assert.Equal(t, uint(42), err.GetContext()["parcel_id"])
	assert.False(t, err.Timestamp.IsZero())
}

func TestUnwrapPreservesBase(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("no rows")
	err := New(base).Category(CategoryDatabase).Build()

	require.ErrorIs(t, err, base)
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	err := Newf("union failed for member").Category(CategoryUnionFailure).Build()

	assert.True(t, HasCategory(err, CategoryUnionFailure))
	assert.False(t, HasCategory(err, CategoryDatabase))

	// wrapped enhanced errors still match by category
	wrapped := fmt.Errorf("merge owner SMITH JOHN: %w", err)
	assert.True(t, HasCategory(wrapped, CategoryUnionFailure))
}

func TestDefaultComponent(t *testing.T) {
	t.Parallel()

	err := Newf("boom").Build()
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, CategoryGeneric, err.GetCategory())
}

func TestContextIsCopied(t *testing.T) {
	t.Parallel()

	err := Newf("boom").Context("county", "Guthrie").Build()
	ctx := err.GetContext()
	ctx["county"] = "mutated"

	assert.Equal(t, "Guthrie", err.GetContext()["county"])
}

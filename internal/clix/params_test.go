package clix

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wardrobe/internal/models"
)

func newFlags(args ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("limit", 0, "")
	fs.Int("offset", 0, "")
	fs.String("status", "", "")
	_ = fs.Parse(args)
	return fs
}

func TestParsePagination(t *testing.T) {
	p, err := ParsePagination(newFlags())
	require.NoError(t, err)
	assert.Equal(t, PaginationParams{Limit: 20, Offset: 0}, p)

	p, err = ParsePagination(newFlags("--limit", "5", "--offset", "-3"))
	require.NoError(t, err)
	assert.Equal(t, PaginationParams{Limit: 5, Offset: 0}, p)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(newFlags("--status", "ready_for_review"))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusReadyForReview, s)

	s, err = ParseStatus(newFlags())
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = ParseStatus(newFlags("--status", "lost"))
	assert.Error(t, err)
}

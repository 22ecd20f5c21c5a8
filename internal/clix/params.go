package clix

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"wardrobe/internal/models"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// ParseStatus reads the optional --status filter. Empty means any status.
func ParseStatus(flags *pflag.FlagSet) (models.JobStatus, error) {
	raw, _ := flags.GetString("status")
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return "", nil
	}
	status := models.JobStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return status, nil
}

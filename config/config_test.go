package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus/leave-engine/leave"
)

func TestLoadRouting_MissingFileYieldsEmptyTables(t *testing.T) {
	// A missing routing file is not an error: the router surfaces a
	// validation error on the first submission instead.
	cfg, err := loadRouting(filepath.Join(t.TempDir(), "routing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.LongLeaveThreshold)
	assert.Empty(t, cfg.SectionReviewers)
	assert.Empty(t, cfg.DepartmentHeads)
}

func TestLoadRouting_ReadsTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
long_leave_threshold: 7
senior_administrator: admin-1
section_reviewers:
  sec-3a: reviewer-3a
department_heads:
  science: head-sci
`), 0o644))

	cfg, err := loadRouting(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.LongLeaveThreshold)
	assert.Equal(t, leave.RequesterID("admin-1"), cfg.SeniorAdministrator)
	assert.Equal(t, leave.RequesterID("reviewer-3a"), cfg.SectionReviewers["sec-3a"])
	assert.Equal(t, leave.RequesterID("head-sci"), cfg.DepartmentHeads["science"])
}

func TestLoadRouting_MalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{\n"), 0o644))

	_, err := loadRouting(path)
	assert.Error(t, err)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , b ,"))
	assert.Nil(t, splitAndTrim(""))
}

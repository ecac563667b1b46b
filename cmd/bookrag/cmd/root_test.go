package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlib/bookrag/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRoot_HelpListsCommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "search")
	assert.Contains(t, out, "version")
	assert.Contains(t, out, "Hybrid retrieval over textbook chunks")
}

func TestRoot_VersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "bookrag version")
}

func TestSearch_RequiresQuery(t *testing.T) {
	_, err := execute(t, "search")
	require.Error(t, err)
}

func TestRoot_SilencesUsageOnError(t *testing.T) {
	// Errors surface once through main; cobra stays quiet.
	out, err := execute(t, "--no-such-flag")
	require.Error(t, err)
	assert.NotContains(t, out, "Usage:")
}

func TestApplyFlags(t *testing.T) {
	cfg := config.NewConfig()
	applyFlags(cfg, searchOptions{
		topK:      7,
		subject:   "networks",
		corpus:    "/tmp/cn.jsonl",
		window:    3,
		noHyde:    true,
		noRerank:  true,
		noRewrite: true,
	})

	assert.Equal(t, 7, cfg.Search.TopK)
	assert.Equal(t, "networks", cfg.Corpus.Subject)
	assert.Equal(t, "/tmp/cn.jsonl", cfg.Corpus.Path)
	assert.Equal(t, 3, cfg.Search.ContextWindow)
	assert.False(t, cfg.Search.UseHyde)
	assert.False(t, cfg.Search.UseReranker)
	assert.False(t, cfg.Search.UseQueryRewriting)
}

func TestApplyFlags_ZeroValuesKeepConfig(t *testing.T) {
	cfg := config.NewConfig()
	applyFlags(cfg, searchOptions{})

	assert.Equal(t, 5, cfg.Search.TopK)
	assert.True(t, cfg.Search.UseHyde)
	assert.True(t, cfg.Search.UseReranker)
	assert.True(t, cfg.Search.UseQueryRewriting)
}

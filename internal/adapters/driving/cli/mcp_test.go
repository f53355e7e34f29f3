package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

func TestMCPServeCmd_Use(t *testing.T) {
	assert.Equal(t, "serve", mcpServeCmd.Use)
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestMCPServeCmd_RequiresConceptDB(t *testing.T) {
	setupTestDeps(t)

	_, err := execute(t, "mcp", "serve")

	assert.ErrorIs(t, err, domain.ErrMissingConceptDB)
}

func TestMCPServeCmd_RequiresAnnotator(t *testing.T) {
	env := setupTestDeps(t)
	env.model.Annotator = nil

	_, err := execute(t, "--cdb", "cdb.csv", "--vocab", "vocab.txt", "mcp", "serve")

	require.Error(t, err)
	assert.Equal(t, 1, env.closed)
}

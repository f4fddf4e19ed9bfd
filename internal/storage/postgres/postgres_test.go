package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementKind(t *testing.T) {
	assert.Equal(t, "select", statementKind("\n\t\tSELECT id FROM pairs"))
	assert.Equal(t, "insert", statementKind("INSERT INTO positions (id) VALUES ($1)"))
	assert.Equal(t, "unknown", statementKind("  \n "))
}

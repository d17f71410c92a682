package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"deploy", "failed", "staging_env", "v2"},
		terms("The deploy FAILED on staging_env (v2)!"))
	assert.Empty(t, terms("the of and"))
}

func TestTermCoverage(t *testing.T) {
	tests := []struct {
		name     string
		document string
		query    string
		expected float32
	}{
		{"all words", "Deploy failed on staging", "staging deploy", 1},
		{"half the words", "deploy succeeded", "deploy failed", 0.5},
		{"duplicate query words count once", "deploy", "deploy deploy", 1},
		{"only stop words", "anything", "the of", 0},
		{"no overlap", "lunch menu", "deploy", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, termCoverage(tt.document, tt.query), 1e-6)
		})
	}
}

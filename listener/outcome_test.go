package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestClass_SimpleName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"io.github.adapter.CalculatorTest", "CalculatorTest"},
		{"github.com/acme/project/internal/calc", "calc"},
		{"github.com/acme/project/", "project"},
		{"CalculatorTest", "CalculatorTest"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TestClass{Name: tt.name}.SimpleName())
		})
	}
}

func TestNormalizeDisplayName(t *testing.T) {
	assert.Equal(t, "testAdd", NormalizeDisplayName("testAdd()"))
	assert.Equal(t, "TestSplit/empty_input", NormalizeDisplayName("TestSplit/empty_input"))
	assert.Equal(t, "a b", NormalizeDisplayName("(a) (b)"))
}

func TestParseOutcome(t *testing.T) {
	for name, expected := range map[string]Outcome{
		"successful": Successful,
		"FAILED":     Failed,
		" aborted ":  Aborted,
		"disabled":   Disabled,
		"skip":       Aborted,
	} {
		got, err := ParseOutcome(name)
		assert.NoError(t, err, name)
		assert.Equal(t, expected, got, name)
	}

	_, err := ParseOutcome("exploded")
	assert.Error(t, err)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "Outcome(7)", Outcome(7).String())
}

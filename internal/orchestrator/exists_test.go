package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameFilterWidensOperators(t *testing.T) {
	cases := map[string]string{
		"Acme Buyer":    "Acme Buyer",
		"Acme|Co":       "Acme*Co",
		"!Acme":         "*Acme",
		">Zeta Supply":  "*Zeta Supply",
		"<=Beta":        "*=Beta",
		"Acme * Supply": "Acme * Supply",
	}
	for name, want := range cases {
		assert.Equal(t, want, nameFilter(name), name)
	}
}

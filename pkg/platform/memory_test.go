package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySaveAPIClientReplacesRecord(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	event := "HeadStartCheckout"
	m.SeedAPIClient(APIClient{ID: "sf-1", AppName: "Storefront - Acme", OrderCheckoutIntegrationEventID: &event})

	saved, err := m.SaveAPIClient(ctx, "tok", "sf-1", APIClient{AppName: "Storefront - Acme", Active: true})
	require.NoError(t, err)
	assert.Nil(t, saved.OrderCheckoutIntegrationEventID)

	bound, err := m.ListAPIClients(ctx, "tok", Filters{"OrderCheckoutIntegrationEventID": "*"})
	require.NoError(t, err)
	assert.Empty(t, bound)
}

func TestMemoryFilterOperators(t *testing.T) {
	cases := []struct {
		expr, actual string
		want         bool
	}{
		{"Acme", "Acme", true},
		{"Acme*", "Acme Supply", true},
		{"*", "", false},
		{"Acme|Beta", "Beta", true},
		{"Acme|Beta", "Acme|Beta", false},
		{"!Acme", "Beta", true},
		{"!Acme", "Acme", false},
		{">M", "Zeta", true},
		{">M", "Alpha", false},
		{"<=M", "M", true},
		{"Acme*Co", "Acme|Co", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, filterMatch(tc.expr, tc.actual), "%q against %q", tc.expr, tc.actual)
	}
}

func TestMemoryRepeatedXpIndexReportsIDExists(t *testing.T) {
	m := NewMemory()
	idx := XpIndex{ThingType: "Product", Key: "Status"}
	require.NoError(t, m.PutXpIndex(context.Background(), "tok", idx))
	err := m.PutXpIndex(context.Background(), "tok", idx)
	assert.True(t, IsIDExists(err))
	assert.Len(t, m.XpIndices(), 1)
}

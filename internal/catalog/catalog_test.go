package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headstart/pkg/platform"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "DefaultContext", c.FullAccessProfile)
	assert.Len(t, c.SecurityProfiles, 23)
	assert.Len(t, c.SellerRoles, 15)
	assert.Len(t, c.XpIndices, 16)
	assert.Equal(t, "Default HeadStart Buyer", c.DefaultBuyer.Name)
	assert.True(t, c.DefaultBuyer.Active)
	assert.Equal(t, 0, c.DefaultBuyer.Xp.MarkupPercent)
	assert.Equal(t, "Storefront - *", c.StorefrontAppNamePattern)
	assert.Equal(t, 600, c.APIClients.AccessTokenDuration)
	assert.Equal(t, 43200, c.APIClients.RefreshTokenDuration)
	assert.Equal(t, false, c.IntegrationEvents.ConfigData["ExcludePOProductsFromShipping"])
	assert.Equal(t, true, c.IntegrationEvents.ConfigData["ExcludePOProductsFromTax"])
}

func TestDomainProfileIDsMatchTheirCustomRole(t *testing.T) {
	c := MustDefault()
	for _, p := range c.SecurityProfiles {
		if p.ID == "HSContentAdmin" {
			// content admin carries the asset, document and schema roles instead of its own label
			continue
		}
		assert.Contains(t, p.CustomRoles, p.ID, p.ID)
	}
}

func TestProfilesAppendFullAccess(t *testing.T) {
	c := MustDefault()
	profiles := c.Profiles()
	require.Len(t, profiles, len(c.SecurityProfiles)+1)

	last := profiles[len(profiles)-1]
	assert.Equal(t, "DefaultContext", last.ID)
	assert.Equal(t, []string{platform.RoleFullAccess}, last.Roles)
	for _, p := range profiles {
		assert.NotNil(t, p.Roles, p.ID)
		assert.NotNil(t, p.CustomRoles, p.ID)
	}
}

func TestSenders(t *testing.T) {
	c := MustDefault()
	senders := c.Senders("https://mw.example.com", "hash")
	require.Len(t, senders, 3)
	for _, s := range senders {
		assert.Equal(t, "https://mw.example.com/messagesenders/{messagetype}", s.URL)
		assert.Equal(t, "hash", s.SharedKey)
	}
	buyer, ok := c.SenderFor(ScopeBuyer)
	require.True(t, ok)
	assert.Equal(t, "BuyerEmails", buyer.ID)
	assert.Len(t, buyer.MessageTypes, 5)
}

func TestIncrementors(t *testing.T) {
	incs := MustDefault().PlatformIncrementors()
	assert.Equal(t, []platform.Incrementor{
		{ID: "orderIncrementor", Name: "Order Incrementor", LeftPaddingCount: 6},
		{ID: "supplierIncrementor", Name: "Supplier Incrementor", LeftPaddingCount: 3},
		{ID: "buyerIncrementor", Name: "Buyer Incrementor", LeftPaddingCount: 4},
	}, incs)
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string]string{
		"unknown seller role": `
full_access_profile: DefaultContext
base_buyer_profile: HSBaseBuyer
security_profiles: [{id: HSBaseBuyer}]
seller_roles: [HSNope]`,
		"duplicate profile": `
full_access_profile: DefaultContext
base_buyer_profile: HSBaseBuyer
security_profiles: [{id: HSBaseBuyer}, {id: HSBaseBuyer}]`,
		"missing base buyer": `
full_access_profile: DefaultContext
base_buyer_profile: HSBaseBuyer
security_profiles: [{id: HSOrderAdmin}]`,
		"bad sender scope": `
full_access_profile: DefaultContext
base_buyer_profile: HSBaseBuyer
security_profiles: [{id: HSBaseBuyer}]
message_senders: [{id: X, scope: everyone}]`,
		"not yaml": `:::`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

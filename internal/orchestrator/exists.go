package orchestrator

import (
	"context"
	"strings"

	"headstart/pkg/platform"
)

// Buyers and suppliers have no platform-enforced business key, so name is the natural key.
// Matching is exact: no trimming and no case folding.

// filterOperators are read by the platform as list-filter syntax.
var filterOperators = strings.NewReplacer("|", "*", "!", "*", "<", "*", ">", "*")

// nameFilter turns a name into a list filter that cannot be misread as an operator expression.
// Operator characters become wildcards, so the filter may over-match; callers compare names exactly.
func nameFilter(name string) string {
	return filterOperators.Replace(name)
}

func (s *Seeder) findBuyer(ctx context.Context, token, name string) (platform.Buyer, bool, error) {
	list, err := s.oc.ListBuyers(ctx, token, platform.Filters{"Name": nameFilter(name)})
	if err != nil {
		return platform.Buyer{}, false, err
	}
	for _, b := range list {
		if b.Name == name {
			return b, true, nil
		}
	}
	return platform.Buyer{}, false, nil
}

func (s *Seeder) findSupplier(ctx context.Context, token, name string) (platform.Supplier, bool, error) {
	list, err := s.oc.ListSuppliers(ctx, token, platform.Filters{"Name": nameFilter(name)})
	if err != nil {
		return platform.Supplier{}, false, err
	}
	for _, sp := range list {
		if sp.Name == name {
			return sp, true, nil
		}
	}
	return platform.Supplier{}, false, nil
}

func (s *Seeder) existingBuyerIDs(ctx context.Context, token string, buyers []platform.Buyer) ([]string, error) {
	var ids []string
	for _, b := range buyers {
		found, ok, err := s.findBuyer(ctx, token, b.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, found.ID)
		}
	}
	return ids, nil
}

func (s *Seeder) existingSupplierIDs(ctx context.Context, token string, suppliers []platform.Supplier) ([]string, error) {
	var ids []string
	for _, sp := range suppliers {
		found, ok, err := s.findSupplier(ctx, token, sp.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, found.ID)
		}
	}
	return ids, nil
}

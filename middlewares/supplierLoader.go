package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/maisoong/exchange_backend/models"
)

type supplierReader struct {
	ledger *models.Ledger
}

func (r *supplierReader) getSuppliers(ctx context.Context, ids []int) []*dataloader.Result[*models.Supplier] {
	results, err := r.ledger.GetSuppliersByIds(ctx, ids)
	if err != nil {
		return handleError[*models.Supplier](len(ids), err)
	}

	return generateLoaderResults(results, ids, func(s *models.Supplier) int { return s.ID })
}

func GetSupplier(ctx context.Context, id int) (*models.Supplier, error) {
	loaders := For(ctx)
	return loaders.supplierLoader.Load(ctx, id)()
}

func GetSuppliers(ctx context.Context, ids []int) ([]*models.Supplier, []error) {
	loaders := For(ctx)
	return loaders.supplierLoader.LoadMany(ctx, ids)()
}

// SupplierNames resolves display names for ids through the request loader.
// Unknown ids are left out of the map.
func SupplierNames(ctx context.Context, ids []int) map[int]string {
	names := make(map[int]string, len(ids))
	if len(ids) == 0 || For(ctx) == nil {
		return names
	}
	suppliers, _ := GetSuppliers(ctx, uniqueIds(ids))
	for _, s := range suppliers {
		if s != nil {
			names[s.ID] = s.Name
		}
	}
	return names
}

func uniqueIds(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

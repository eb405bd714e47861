package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/maisoong/exchange_backend/models"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap the per-request data loaders.
type Loaders struct {
	supplierLoader *dataloader.Loader[int, *models.Supplier]
}

func NewLoaders(ledger *models.Ledger) *Loaders {
	supplierReader := &supplierReader{ledger: ledger}
	return &Loaders{
		supplierLoader: dataloader.NewBatchedLoader(supplierReader.getSuppliers, dataloader.WithWait[int, *models.Supplier](time.Millisecond)),
	}
}

func LoaderMiddleware(ledger *models.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(ledger)
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// For returns the loaders attached by LoaderMiddleware, or nil.
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// generateLoaderResults orders rows by the requested ids. Missing ids get
// a nil value, not an error.
func generateLoaderResults[T any](results []T, ids []int, idOf func(T) int) []*dataloader.Result[T] {
	resultMap := make(map[int]T, len(results))
	for _, result := range results {
		resultMap[idOf(result)] = result
	}

	loaderResults := make([]*dataloader.Result[T], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[T]{Data: resultMap[id]})
	}
	return loaderResults
}

package handler

import (
	"context"
	"encoding/json"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// LambdaHandler adapts one registered function to the lambda runtime's
// handler signature.
func LambdaHandler(r *Registry, name string) (func(ctx context.Context, event json.RawMessage) (interface{}, error), error) {
	fn, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, event json.RawMessage) (interface{}, error) {
		logger := logutil.GetLogger(ctx).With(zap.String("function", name))
		result, err := fn(ctx, event)
		if err != nil {
			logger.Error("function failed", zap.Error(err))
			return nil, err
		}
		logger.Info("function finished")
		return result, nil
	}, nil
}

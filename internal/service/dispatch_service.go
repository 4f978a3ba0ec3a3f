package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/wellmeet-pipeline/internal/artifact"
	"github.com/xxxsen/wellmeet-pipeline/internal/model"
	"github.com/xxxsen/wellmeet-pipeline/internal/objstore"
	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
	"github.com/xxxsen/wellmeet-pipeline/internal/queue"
)

type DispatchService struct {
	store     objstore.Store
	submitter queue.JobSubmitter
	idFields  []string
}

func NewDispatchService(store objstore.Store, submitter queue.JobSubmitter, idFields []string) *DispatchService {
	return &DispatchService{store: store, submitter: submitter, idFields: idFields}
}

type DispatchResult struct {
	Identifiers []string `json:"identifiers"`
	JobIDs      []string `json:"jobIds"`
}

func (r *DispatchResult) merge(other *DispatchResult) {
	r.Identifiers = append(r.Identifiers, other.Identifiers...)
	r.JobIDs = append(r.JobIDs, other.JobIDs...)
}

// HandleEvent dispatches every object referenced by an object-created event.
func (s *DispatchService) HandleEvent(ctx context.Context, event events.S3Event) (*DispatchResult, error) {
	result := &DispatchResult{}
	for _, record := range event.Records {
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("decode object key %q: %w", record.S3.Object.Key, appErr.ErrInvalid)
		}
		res, err := s.HandleObject(ctx, record.S3.Bucket.Name, key)
		if err != nil {
			return nil, err
		}
		result.merge(res)
	}
	return result, nil
}

// HandleObject submits one downstream job per distinct identifier found
// anywhere in the JSON document at bucket/key.
func (s *DispatchService) HandleObject(ctx context.Context, bucket, key string) (*DispatchResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("bucket", bucket), zap.String("key", key))
	data, err := artifact.ReadBytes(ctx, s.store, objstore.Location{Bucket: bucket, Key: key})
	if err != nil {
		logger.Error("read ingested object failed", zap.Error(err))
		return nil, err
	}
	ids, err := CollectIdentifiers(data, s.idFields)
	if err != nil {
		logger.Error("ingested object is not valid json", zap.Error(err))
		return nil, err
	}
	result := &DispatchResult{Identifiers: ids}
	for _, id := range ids {
		jobID, err := s.submitter.Submit(ctx, model.WorkUnit{Identifier: id, SourceBucket: bucket, SourceKey: key})
		if err != nil {
			logger.Error("submit work unit failed", zap.String("identifier", id), zap.Error(err))
			return nil, err
		}
		result.JobIDs = append(result.JobIDs, jobID)
	}
	logger.Info("dispatch finished", zap.Int("identifiers", len(ids)))
	return result, nil
}

// CollectIdentifiers walks every object reachable in data and returns the
// distinct values of the first identifier field each object carries, in the
// order they are first met.
func CollectIdentifiers(data []byte, fields []string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var root interface{}
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode json: %w: %w", appErr.ErrInvalid, err)
	}
	seen := make(map[string]struct{})
	var ids []string
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch node := v.(type) {
		case map[string]interface{}:
			if id, ok := identifierOf(node, fields); ok {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
			keys := make([]string, 0, len(node))
			for k := range node {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(node[k])
			}
		case []interface{}:
			for _, item := range node {
				walk(item)
			}
		}
	}
	walk(root)
	return ids, nil
}

func identifierOf(obj map[string]interface{}, fields []string) (string, bool) {
	for _, field := range fields {
		switch v := obj[field].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, true
			}
		case json.Number:
			return v.String(), true
		}
	}
	return "", false
}

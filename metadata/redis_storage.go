package metadata

import (
	"context"

	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
	"github.com/JacLight/mintflow-sub008/util"
	rd "github.com/go-redis/redis/v9"
)

const DEFINITION_KEY string = "DEF"

var _ Storage = new(redisStorage)

type redisStorage struct {
	redisClient    rd.UniversalClient
	namespace      string
	encoderDecoder util.EncoderDecoder[model.FlowDefinition]
}

func NewRedisStorage(addrs []string, namespace string) *redisStorage {
	return &redisStorage{
		redisClient: rd.NewUniversalClient(&rd.UniversalOptions{
			Addrs: addrs,
		}),
		namespace:      namespace,
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowDefinition](),
	}
}

func (s *redisStorage) key(tenantId string) string {
	return s.namespace + ":" + DEFINITION_KEY + ":" + tenantId
}

func (s *redisStorage) SaveFlowDefinition(def model.FlowDefinition) error {
	ctx := context.Background()
	data, err := s.encoderDecoder.Encode(def)
	if err != nil {
		return err
	}
	if err := s.redisClient.HSet(ctx, s.key(def.TenantId), def.FlowId, string(data)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisStorage) DeleteFlowDefinition(tenantId string, flowId string) error {
	ctx := context.Background()
	removed, err := s.redisClient.HDel(ctx, s.key(tenantId), flowId).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if removed == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *redisStorage) GetFlowDefinition(tenantId string, flowId string) (*model.FlowDefinition, error) {
	ctx := context.Background()
	defStr, err := s.redisClient.HGet(ctx, s.key(tenantId), flowId).Result()
	if err != nil {
		if err == rd.Nil {
			return nil, persistence.ErrNotFound
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.encoderDecoder.Decode([]byte(defStr))
}

func (s *redisStorage) ListFlowDefinitions(tenantId string) ([]*model.FlowDefinition, error) {
	ctx := context.Background()
	fields, err := s.redisClient.HGetAll(ctx, s.key(tenantId)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.FlowDefinition, 0, len(fields))
	for _, defStr := range fields {
		def, err := s.encoderDecoder.Decode([]byte(defStr))
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

package redis

import (
	"context"

	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
	"github.com/JacLight/mintflow-sub008/util"
	rd "github.com/go-redis/redis/v9"
	"go.uber.org/zap"
)

const FLOW_KEY string = "FLOW"

var _ persistence.FlowStore = new(redisFlowStore)

// redisFlowStore keeps one hash per tenant, fields keyed by flowId. All keys
// are namespaced, so tenants never observe each other's records.
type redisFlowStore struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.FlowRecord]
}

func NewRedisFlowStore(conf Config) *redisFlowStore {
	return &redisFlowStore{
		baseDao:        *newBaseDao(conf),
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowRecord](),
	}
}

func (rf *redisFlowStore) SaveFlow(record *model.FlowRecord) error {
	key := rf.baseDao.getNamespaceKey(FLOW_KEY, record.TenantId)
	ctx := context.Background()
	data, err := rf.encoderDecoder.Encode(*record)
	if err != nil {
		return err
	}
	if err := rf.baseDao.redisClient.HSet(ctx, key, record.FlowId, string(data)).Err(); err != nil {
		logger.Error("error in saving flow record", zap.String("tenantId", record.TenantId), zap.String("flowId", record.FlowId), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rf *redisFlowStore) GetFlow(tenantId string, flowId string) (*model.FlowRecord, error) {
	key := rf.baseDao.getNamespaceKey(FLOW_KEY, tenantId)
	ctx := context.Background()
	recordStr, err := rf.baseDao.redisClient.HGet(ctx, key, flowId).Result()
	if err != nil {
		if err == rd.Nil {
			return nil, persistence.ErrNotFound
		}
		logger.Error("error in getting flow record", zap.String("tenantId", tenantId), zap.String("flowId", flowId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rf.encoderDecoder.Decode([]byte(recordStr))
}

func (rf *redisFlowStore) ListFlows(tenantId string) ([]*model.FlowRecord, error) {
	key := rf.baseDao.getNamespaceKey(FLOW_KEY, tenantId)
	ctx := context.Background()
	fields, err := rf.baseDao.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		logger.Error("error in listing flow records", zap.String("tenantId", tenantId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	records := make([]*model.FlowRecord, 0, len(fields))
	for _, recordStr := range fields {
		record, err := rf.encoderDecoder.Decode([]byte(recordStr))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (rf *redisFlowStore) DeleteFlow(tenantId string, flowId string) error {
	key := rf.baseDao.getNamespaceKey(FLOW_KEY, tenantId)
	ctx := context.Background()
	removed, err := rf.baseDao.redisClient.HDel(ctx, key, flowId).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if removed == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

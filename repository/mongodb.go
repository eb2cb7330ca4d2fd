package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// 集合名
	UsersCollection            = "users"
	ClientsCollection          = "clients"
	OpportunitiesCollection    = "opportunities"
	PaymentEntriesCollection   = "payment_entries"
	ProgressHistoryCollection  = "opportunity_progress_history"
	ApiOperationLogsCollection = "apiOperationLogs"
)

var allCollections = []string{
	UsersCollection,
	ClientsCollection,
	OpportunitiesCollection,
	PaymentEntriesCollection,
	ProgressHistoryCollection,
	ApiOperationLogsCollection,
}

// MongoStore 基于MongoDB的数据服务
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore 连接MongoDB，启动阶段连接失败会重试
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	var client *mongo.Client
	err := connectWithRetry(func() error {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		c, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
		if err != nil {
			return fmt.Errorf("连接MongoDB失败: %w", err)
		}

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		if err := c.Ping(pingCtx, readpref.Primary()); err != nil {
			_ = c.Disconnect(ctx)
			return fmt.Errorf("ping MongoDB失败: %w", err)
		}
		client = c
		return nil
	}, 3)
	if err != nil {
		return nil, err
	}

	utils.Logger.Info().Str("database", dbName).Msg("已连接到MongoDB")
	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

// connectWithRetry 仅用于启动连接，业务读写不重试
func connectWithRetry(operation func() error, retries int) error {
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err
		utils.Logger.Error().Err(err).Msgf("数据库连接失败，重试 (%d/%d)", i+1, retries)

		if !isRetryableError(err) {
			break
		}
		time.Sleep(time.Duration(500*(i+1)) * time.Millisecond)
	}
	return lastErr
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	// MongoDB可重试错误代码
	retryableCodes := map[int32]bool{
		6:     true, // HostUnreachable
		7:     true, // HostNotFound
		89:    true, // NetworkTimeout
		91:    true, // ShutdownInProgress
		189:   true, // PrimarySteppedDown
		10107: true, // NotMaster
		11600: true, // InterruptedAtShutdown
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return retryableCodes[cmdErr.Code]
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, ne := range []string{"connection refused", "no reachable servers", "server selection error"} {
		if strings.Contains(msg, ne) {
			return true
		}
	}
	return false
}

// Close 关闭MongoDB连接
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		utils.Logger.Error().Err(err).Msg("断开MongoDB连接失败")
		return err
	}
	utils.Logger.Info().Msg("已断开MongoDB连接")
	return nil
}

// EnsureIndexes 初始化集合索引
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		OpportunitiesCollection: {
			{Keys: bson.D{{Key: "stage", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "clientId", Value: 1}}},
		},
		PaymentEntriesCollection: {
			{Keys: bson.D{{Key: "opportunityId", Value: 1}}},
		},
		ProgressHistoryCollection: {
			{Keys: bson.D{{Key: "opportunityId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for collName, idx := range indexes {
		if _, err := s.db.Collection(collName).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("创建索引失败 %s: %w", collName, err)
		}
		utils.Logger.Info().Str("collection", collName).Msg("索引已就绪")
	}
	return nil
}

// Status 获取各集合的记录数
func (s *MongoStore) Status(ctx context.Context) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	for _, collName := range allCollections {
		count, err := s.db.Collection(collName).CountDocuments(ctx, bson.M{})
		if err != nil {
			utils.Logger.Error().Err(err).Str("collection", collName).Msg("获取集合计数失败")
			result[collName] = map[string]interface{}{"count": 0, "error": err.Error()}
			continue
		}
		result[collName] = map[string]interface{}{"count": count}
	}
	return result, nil
}

func (s *MongoStore) opportunityPipeline(match bson.M) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         ClientsCollection,
			"localField":   "clientId",
			"foreignField": "_id",
			"as":           "client",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$client", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         PaymentEntriesCollection,
			"localField":   "_id",
			"foreignField": "opportunityId",
			"as":           "payments",
		}}},
	}
}

// FindOpportunities 按条件查询商机，并关联客户和回款
func (s *MongoStore) FindOpportunities(ctx context.Context, filter OpportunityFilter) ([]models.OpportunityView, error) {
	match := bson.M{}
	if filter.Stage != "" {
		match["stage"] = filter.Stage
	}
	if filter.ExcludeTerminal {
		match["status"] = bson.M{"$nin": models.TerminalStatuses}
	}

	cursor, err := s.db.Collection(OpportunitiesCollection).Aggregate(ctx, s.opportunityPipeline(match))
	if err != nil {
		return nil, fmt.Errorf("查询商机失败: %w", err)
	}
	defer cursor.Close(ctx)

	views := make([]models.OpportunityView, 0)
	if err := cursor.All(ctx, &views); err != nil {
		return nil, fmt.Errorf("解析商机失败: %w", err)
	}
	utils.LogDbOperation("aggregate", OpportunitiesCollection, match, len(views))
	return views, nil
}

// GetOpportunity 根据ID获取商机
func (s *MongoStore) GetOpportunity(ctx context.Context, id string) (*models.OpportunityView, error) {
	cursor, err := s.db.Collection(OpportunitiesCollection).Aggregate(ctx, s.opportunityPipeline(bson.M{"_id": id}))
	if err != nil {
		return nil, fmt.Errorf("查询商机失败: %w", err)
	}
	defer cursor.Close(ctx)

	var views []models.OpportunityView
	if err := cursor.All(ctx, &views); err != nil {
		return nil, fmt.Errorf("解析商机失败: %w", err)
	}
	if len(views) == 0 {
		return nil, ErrNotFound
	}
	return &views[0], nil
}

// SaveOpportunity 按ID新增或更新商机
func (s *MongoStore) SaveOpportunity(ctx context.Context, o *models.Opportunity) error {
	if o.ID == "" {
		o.ID = NewID()
	}
	_, err := s.db.Collection(OpportunitiesCollection).ReplaceOne(
		ctx,
		bson.M{"_id": o.ID},
		o,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("保存商机失败: %w", err)
	}
	return nil
}

// ListPayments 获取商机的回款记录
func (s *MongoStore) ListPayments(ctx context.Context, opportunityID string) ([]models.PaymentEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "paymentDate", Value: 1}})
	cursor, err := s.db.Collection(PaymentEntriesCollection).Find(ctx, bson.M{"opportunityId": opportunityID}, opts)
	if err != nil {
		return nil, fmt.Errorf("查询回款失败: %w", err)
	}
	defer cursor.Close(ctx)

	payments := make([]models.PaymentEntry, 0)
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("解析回款失败: %w", err)
	}
	return payments, nil
}

// InsertPayment 新增回款记录
func (s *MongoStore) InsertPayment(ctx context.Context, p *models.PaymentEntry) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	if _, err := s.db.Collection(PaymentEntriesCollection).InsertOne(ctx, p); err != nil {
		return fmt.Errorf("新增回款失败: %w", err)
	}
	return nil
}

// DeletePayment 删除回款记录
func (s *MongoStore) DeletePayment(ctx context.Context, opportunityID, paymentID string) error {
	res, err := s.db.Collection(PaymentEntriesCollection).DeleteOne(ctx, bson.M{
		"_id":           paymentID,
		"opportunityId": opportunityID,
	})
	if err != nil {
		return fmt.Errorf("删除回款失败: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindClients 获取全部客户
func (s *MongoStore) FindClients(ctx context.Context) ([]models.Client, error) {
	opts := options.Find().SetSort(bson.D{{Key: "companyName", Value: 1}})
	cursor, err := s.db.Collection(ClientsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("查询客户失败: %w", err)
	}
	defer cursor.Close(ctx)

	clients := make([]models.Client, 0)
	if err := cursor.All(ctx, &clients); err != nil {
		return nil, fmt.Errorf("解析客户失败: %w", err)
	}
	return clients, nil
}

// GetClient 根据ID获取客户
func (s *MongoStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	err := s.db.Collection(ClientsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询客户失败: %w", err)
	}
	return &client, nil
}

// SaveClient 按ID新增或更新客户
func (s *MongoStore) SaveClient(ctx context.Context, c *models.Client) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	_, err := s.db.Collection(ClientsCollection).ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("保存客户失败: %w", err)
	}
	return nil
}

// InsertHistory 新增进展历史
func (s *MongoStore) InsertHistory(ctx context.Context, h *models.ProgressHistory) error {
	if h.ID == "" {
		h.ID = NewID()
	}
	if _, err := s.db.Collection(ProgressHistoryCollection).InsertOne(ctx, h); err != nil {
		return fmt.Errorf("新增进展历史失败: %w", err)
	}
	return nil
}

// ListHistory 按时间倒序获取商机的进展历史
func (s *MongoStore) ListHistory(ctx context.Context, opportunityID string) ([]models.ProgressHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.db.Collection(ProgressHistoryCollection).Find(ctx, bson.M{"opportunityId": opportunityID}, opts)
	if err != nil {
		return nil, fmt.Errorf("查询进展历史失败: %w", err)
	}
	defer cursor.Close(ctx)

	history := make([]models.ProgressHistory, 0)
	if err := cursor.All(ctx, &history); err != nil {
		return nil, fmt.Errorf("解析进展历史失败: %w", err)
	}
	return history, nil
}

// FindUserByUsername 根据用户名查找用户
func (s *MongoStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

// GetUser 根据ID查找用户
func (s *MongoStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := s.db.Collection(UsersCollection).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

// SaveUser 按ID新增或更新用户
func (s *MongoStore) SaveUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	_, err := s.db.Collection(UsersCollection).ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("保存用户失败: %w", err)
	}
	return nil
}

// ListUsers 获取全部用户
func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetProjection(bson.M{"password": 0})
	cursor, err := s.db.Collection(UsersCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("解析用户失败: %w", err)
	}
	return users, nil
}

// CountUsersByRole 统计指定角色的用户数
func (s *MongoStore) CountUsersByRole(ctx context.Context, role models.UserRole) (int64, error) {
	return s.db.Collection(UsersCollection).CountDocuments(ctx, bson.M{"role": role})
}

// InsertOperationLog 保存操作日志
func (s *MongoStore) InsertOperationLog(ctx context.Context, log *models.OperationLog) error {
	if log.ID == "" {
		log.ID = NewID()
	}
	_, err := s.db.Collection(ApiOperationLogsCollection).InsertOne(ctx, log)
	return err
}

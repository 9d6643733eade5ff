package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/docshub/rag-go/internal/logger"
	"go.uber.org/zap"
)

// Producer Kafka生产者
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// GetProducerInstance 获取底层sarama producer实例（用于扩展功能）
func (p *Producer) GetProducerInstance() sarama.SyncProducer {
	return p.producer
}

// IngestionEvent 文档入库事件
type IngestionEvent struct {
	Action       string    `json:"action"` // indexed | deleted | unchanged
	FilePath     string    `json:"file_path"`
	DocumentID   uint      `json:"document_id"`
	ContentHash  string    `json:"content_hash,omitempty"`
	SectionCount int       `json:"section_count"`
	Timestamp    time.Time `json:"timestamp"`
}

var globalProducer *Producer

// InitProducer 初始化Kafka生产者
func InitProducer(brokers []string, topic string) error {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	globalProducer = &Producer{
		producer: producer,
		topic:    topic,
	}

	logger.Info("Kafka生产者初始化成功", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return nil
}

// GetProducer 获取全局生产者实例
func GetProducer() *Producer {
	return globalProducer
}

// SendEvent 发送入库事件到Kafka
func (p *Producer) SendEvent(event *IngestionEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("Kafka生产者未初始化")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.FilePath),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("action"),
				Value: []byte(event.Action),
			},
		},
	}

	partition, offset, err := p.producer.SendMessage(kafkaMsg)
	if err != nil {
		logger.Error("发送Kafka事件失败", zap.Error(err))
		return fmt.Errorf("发送事件失败: %w", err)
	}

	logger.Debug("Kafka事件发送成功",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("file_path", event.FilePath))

	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p != nil && p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// SendIngestionEvent 发送入库事件（便捷方法）
func SendIngestionEvent(action, filePath string, documentID uint, contentHash string, sectionCount int) error {
	producer := GetProducer()
	if producer == nil {
		// Kafka未配置时静默跳过，不影响主流程
		return nil
	}

	event := &IngestionEvent{
		Action:       action,
		FilePath:     filePath,
		DocumentID:   documentID,
		ContentHash:  contentHash,
		SectionCount: sectionCount,
		Timestamp:    time.Now(),
	}

	return producer.SendEvent(event)
}

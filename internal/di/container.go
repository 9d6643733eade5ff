package di

import (
	"github.com/docshub/rag-go/internal/config"
	"github.com/docshub/rag-go/internal/kafka"
	"github.com/docshub/rag-go/internal/logger"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Container 是依赖注入容器的全局实例
var Container *dig.Container

// InitContainer 初始化依赖注入容器
func InitContainer() *dig.Container {
	Container = dig.New()
	return Container
}

// BuildContainer 初始化容器并注册全部提供者
func BuildContainer() (*dig.Container, error) {
	container := InitContainer()
	if err := RegisterProviders(container); err != nil {
		return nil, err
	}
	if err := container.Invoke(initMessaging); err != nil {
		return nil, err
	}
	return container, nil
}

// initMessaging 按配置启动Kafka生产者，失败不阻塞主流程
func initMessaging(cfg *config.Config) {
	if !cfg.Kafka.Enabled {
		return
	}
	if err := kafka.InitProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
		logger.Warn("Kafka生产者启动失败，入库事件将被跳过", zap.Error(err))
	}
}

// GetContainer 获取依赖注入容器实例
func GetContainer() *dig.Container {
	return Container
}

// Invoke 封装dig.Invoke，提供更友好的接口
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	return Container.Invoke(function, opts...)
}

// Provide 封装dig.Provide，提供更友好的接口
func Provide(constructor interface{}, opts ...dig.ProvideOption) error {
	return Container.Provide(constructor, opts...)
}

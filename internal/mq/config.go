// Package mq 提供RabbitMQ连接管理与库存事件的收发
package mq

import (
	"crypto/tls"
	"fmt"
	"time"
)

// Config RabbitMQ连接配置，拓扑由各业务队列管理器自行声明
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	VHost    string `json:"vhost"`

	// TLS配置
	UseTLS                bool   `json:"use_tls"`
	TLSCertFile           string `json:"tls_cert_file"`
	TLSKeyFile            string `json:"tls_key_file"`
	TLSCACertFile         string `json:"tls_ca_cert_file"`
	TLSServerName         string `json:"tls_server_name"`
	TLSInsecureSkipVerify bool   `json:"tls_insecure_skip_verify"`

	// 连接与通道池
	MaxConnections    int           `json:"max_connections"`
	MaxChannels       int           `json:"max_channels"`
	ConnectionTimeout time.Duration `json:"connection_timeout"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`

	// 断线重连
	EnableReconnect      bool          `json:"enable_reconnect"`
	ReconnectInterval    time.Duration `json:"reconnect_interval"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts"`

	Producer *ProducerConfig `json:"producer"`
	Consumer *ConsumerConfig `json:"consumer"`
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	// 发布确认
	EnableConfirm  bool          `json:"enable_confirm"`
	ConfirmTimeout time.Duration `json:"confirm_timeout"`

	// 发布重试
	EnableRetry      bool          `json:"enable_retry"`
	MaxRetryAttempts int           `json:"max_retry_attempts"`
	RetryInterval    time.Duration `json:"retry_interval"`

	PublishTimeout time.Duration `json:"publish_timeout"`
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	PrefetchCount int  `json:"prefetch_count"`
	PrefetchSize  int  `json:"prefetch_size"`
	AutoAck       bool `json:"auto_ack"`
	Exclusive     bool `json:"exclusive"`
	NoLocal       bool `json:"no_local"`
	NoWait        bool `json:"no_wait"`

	// 消费重试
	EnableRetry      bool          `json:"enable_retry"`
	MaxRetryAttempts int           `json:"max_retry_attempts"`
	RetryInterval    time.Duration `json:"retry_interval"`

	// 死信队列
	EnableDLX     bool   `json:"enable_dlx"`
	DLXExchange   string `json:"dlx_exchange"`
	DLXRoutingKey string `json:"dlx_routing_key"`

	// 单条消息处理超时
	ConsumeTimeout time.Duration `json:"consume_timeout"`

	// 并发消费者数量
	ConcurrentConsumers int `json:"concurrent_consumers"`
}

// DefaultConfig 返回默认配置，本地开发可直接使用
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5672,
		Username: "guest",
		Password: "guest",
		VHost:    "/",

		MaxConnections:    10,
		MaxChannels:       100,
		ConnectionTimeout: 30 * time.Second,
		HeartbeatInterval: 10 * time.Second,

		EnableReconnect:      true,
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 10,

		Producer: &ProducerConfig{
			EnableConfirm:    true,
			ConfirmTimeout:   5 * time.Second,
			EnableRetry:      true,
			MaxRetryAttempts: 3,
			RetryInterval:    time.Second,
			PublishTimeout:   10 * time.Second,
		},

		Consumer: &ConsumerConfig{
			PrefetchCount:       10,
			AutoAck:             false,
			EnableRetry:         true,
			MaxRetryAttempts:    3,
			RetryInterval:       time.Second,
			EnableDLX:           true,
			DLXExchange:         "dlx",
			DLXRoutingKey:       "failed",
			ConsumeTimeout:      30 * time.Second,
			ConcurrentConsumers: 1,
		},
	}
}

// GetConnectionURL 拼接AMQP连接串
func (c *Config) GetConnectionURL() string {
	scheme := "amqp"
	if c.UseTLS {
		scheme = "amqps"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d%s",
		scheme, c.Username, c.Password, c.Host, c.Port, c.VHost)
}

// GetTLSConfig 构建TLS配置，未启用TLS时返回nil
func (c *Config) GetTLSConfig() (*tls.Config, error) {
	if !c.UseTLS {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		ServerName:         c.TLSServerName,
		InsecureSkipVerify: c.TLSInsecureSkipVerify,
	}

	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Validate 验证连接配置
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be greater than 0")
	}
	if c.MaxChannels <= 0 {
		return fmt.Errorf("max_channels must be greater than 0")
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("connection_timeout must be greater than 0")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be greater than 0")
	}

	if c.Producer != nil {
		if err := c.Producer.Validate(); err != nil {
			return fmt.Errorf("producer config validation failed: %w", err)
		}
	}
	if c.Consumer != nil {
		if err := c.Consumer.Validate(); err != nil {
			return fmt.Errorf("consumer config validation failed: %w", err)
		}
	}

	return nil
}

// Validate 验证生产者配置
func (c *ProducerConfig) Validate() error {
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm_timeout must be greater than 0")
	}
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("max_retry_attempts must be >= 0")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be greater than 0")
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("publish_timeout must be greater than 0")
	}
	return nil
}

// Validate 验证消费者配置
func (c *ConsumerConfig) Validate() error {
	if c.PrefetchCount < 0 {
		return fmt.Errorf("prefetch_count must be >= 0")
	}
	if c.PrefetchSize < 0 {
		return fmt.Errorf("prefetch_size must be >= 0")
	}
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("max_retry_attempts must be >= 0")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be greater than 0")
	}
	if c.ConsumeTimeout <= 0 {
		return fmt.Errorf("consume_timeout must be greater than 0")
	}
	if c.ConcurrentConsumers <= 0 {
		return fmt.Errorf("concurrent_consumers must be greater than 0")
	}
	return nil
}

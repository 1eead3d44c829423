package mq

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ConnectionState 连接状态
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionManager 管理到RabbitMQ的单个连接及其通道池，
// 连接断开时按配置自动重连
type ConnectionManager struct {
	config *Config
	logger *zap.Logger

	conn      *amqp.Connection
	connMutex sync.RWMutex
	state     int32 // 原子读写，取值为ConnectionState

	channelPool *ChannelPool

	stopCh         chan struct{}
	reconnectCount int32

	healthCheckInterval time.Duration
	lastHealthCheck     time.Time
}

// NewConnectionManager 创建连接管理器，不立即建立连接
func NewConnectionManager(config *Config, logger *zap.Logger) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	cm := &ConnectionManager{
		config:              config,
		logger:              logger,
		state:               int32(StateDisconnected),
		stopCh:              make(chan struct{}),
		healthCheckInterval: 30 * time.Second,
	}
	cm.channelPool = NewChannelPool(config.MaxChannels, cm)

	return cm
}

// Connect 建立连接并启动断线监控与健康检查
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&cm.state, int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("connection is already in progress or connected")
	}

	cm.logger.Info("connecting to RabbitMQ", zap.String("host", cm.config.Host), zap.Int("port", cm.config.Port))

	if err := cm.dial(); err != nil {
		atomic.StoreInt32(&cm.state, int32(StateDisconnected))
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	cm.logger.Info("RabbitMQ connected")

	go cm.monitorConnection()
	go cm.healthCheck()

	return nil
}

// dial 建立底层AMQP连接并更新状态，Connect与重连共用
func (cm *ConnectionManager) dial() error {
	connConfig := amqp.Config{
		Heartbeat: cm.config.HeartbeatInterval,
		Locale:    "en_US",
	}

	if cm.config.UseTLS {
		tlsConfig, err := cm.config.GetTLSConfig()
		if err != nil {
			return fmt.Errorf("failed to build TLS config: %w", err)
		}
		connConfig.TLSClientConfig = tlsConfig
	}

	conn, err := amqp.DialConfig(cm.config.GetConnectionURL(), connConfig)
	if err != nil {
		return err
	}

	cm.connMutex.Lock()
	cm.conn = conn
	cm.connMutex.Unlock()

	atomic.StoreInt32(&cm.state, int32(StateConnected))
	cm.lastHealthCheck = time.Now()

	return nil
}

// GetConnection 获取当前连接，可能为nil
func (cm *ConnectionManager) GetConnection() *amqp.Connection {
	cm.connMutex.RLock()
	defer cm.connMutex.RUnlock()
	return cm.conn
}

// GetChannel 从通道池借出一个通道
func (cm *ConnectionManager) GetChannel() (*amqp.Channel, error) {
	return cm.channelPool.Get()
}

// ReturnChannel 将通道归还给通道池
func (cm *ConnectionManager) ReturnChannel(ch *amqp.Channel) {
	cm.channelPool.Return(ch)
}

// IsConnected 当前是否处于已连接状态
func (cm *ConnectionManager) IsConnected() bool {
	return atomic.LoadInt32(&cm.state) == int32(StateConnected)
}

// GetState 获取连接状态
func (cm *ConnectionManager) GetState() ConnectionState {
	return ConnectionState(atomic.LoadInt32(&cm.state))
}

// Close 关闭连接与通道池，停止后台监控
func (cm *ConnectionManager) Close() error {
	if !atomic.CompareAndSwapInt32(&cm.state, int32(StateConnected), int32(StateClosed)) &&
		!atomic.CompareAndSwapInt32(&cm.state, int32(StateDisconnected), int32(StateClosed)) &&
		!atomic.CompareAndSwapInt32(&cm.state, int32(StateReconnecting), int32(StateClosed)) {
		return nil
	}

	cm.logger.Info("closing RabbitMQ connection")

	close(cm.stopCh)
	cm.channelPool.Close()

	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()
	if cm.conn != nil {
		err := cm.conn.Close()
		cm.conn = nil
		return err
	}

	return nil
}

// monitorConnection 监听连接关闭事件并触发重连
func (cm *ConnectionManager) monitorConnection() {
	cm.connMutex.RLock()
	conn := cm.conn
	cm.connMutex.RUnlock()

	if conn == nil {
		return
	}

	closeCh := make(chan *amqp.Error, 1)
	conn.NotifyClose(closeCh)

	select {
	case err := <-closeCh:
		if err != nil {
			cm.logger.Error("RabbitMQ connection lost", zap.Error(err))
			cm.handleDisconnection(err)
		}
	case <-cm.stopCh:
	}
}

// handleDisconnection 将状态切换为重连中并启动重连循环
func (cm *ConnectionManager) handleDisconnection(err error) {
	if !atomic.CompareAndSwapInt32(&cm.state, int32(StateConnected), int32(StateReconnecting)) {
		return
	}

	cm.logger.Warn("RabbitMQ disconnected, scheduling reconnect", zap.Error(err))

	if cm.config.EnableReconnect {
		go cm.reconnect()
	}
}

// reconnect 按间隔重试，直到成功、停止或达到最大次数
func (cm *ConnectionManager) reconnect() {
	defer func() {
		if r := recover(); r != nil {
			cm.logger.Error("panic during reconnect", zap.Any("panic", r))
		}
	}()

	attempts := 0
	maxAttempts := cm.config.MaxReconnectAttempts

	for {
		select {
		case <-cm.stopCh:
			return
		default:
		}

		attempts++
		atomic.AddInt32(&cm.reconnectCount, 1)

		cm.logger.Info("reconnecting to RabbitMQ",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", maxAttempts))

		cm.connMutex.Lock()
		if cm.conn != nil {
			cm.conn.Close()
			cm.conn = nil
		}
		cm.connMutex.Unlock()

		if err := cm.dial(); err == nil {
			cm.logger.Info("RabbitMQ reconnected", zap.Int("attempts", attempts))
			go cm.monitorConnection()
			return
		} else {
			cm.logger.Error("reconnect attempt failed",
				zap.Error(err),
				zap.Int("attempt", attempts))
		}

		if maxAttempts > 0 && attempts >= maxAttempts {
			cm.logger.Error("reconnect gave up after max attempts",
				zap.Int("max_attempts", maxAttempts))
			atomic.StoreInt32(&cm.state, int32(StateDisconnected))
			return
		}

		select {
		case <-time.After(cm.config.ReconnectInterval):
		case <-cm.stopCh:
			return
		}
	}
}

// healthCheck 周期性探测连接，失败则触发重连
func (cm *ConnectionManager) healthCheck() {
	ticker := time.NewTicker(cm.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cm.IsConnected() {
				if err := cm.pingConnection(); err != nil {
					cm.logger.Error("health check failed", zap.Error(err))
					cm.handleDisconnection(err)
					return
				}
				cm.lastHealthCheck = time.Now()
			}
		case <-cm.stopCh:
			return
		}
	}
}

// pingConnection 通过开关一个临时通道来探测连接可用性
func (cm *ConnectionManager) pingConnection() error {
	cm.connMutex.RLock()
	conn := cm.conn
	cm.connMutex.RUnlock()

	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("connection is closed")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel for health check: %w", err)
	}
	return ch.Close()
}

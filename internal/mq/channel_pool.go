package mq

import (
	"fmt"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ChannelPool 复用AMQP通道，降低频繁开关通道的开销。
// 池中取出的通道可能已被服务端关闭，Get会丢弃失效通道并新建。
type ChannelPool struct {
	maxSize  int
	channels chan *amqp.Channel
	cm       *ConnectionManager
	closed   int32
}

// NewChannelPool 创建通道池
func NewChannelPool(maxSize int, cm *ConnectionManager) *ChannelPool {
	return &ChannelPool{
		maxSize:  maxSize,
		channels: make(chan *amqp.Channel, maxSize),
		cm:       cm,
	}
}

// Get 借出一个可用通道，池空时基于当前连接新建
func (cp *ChannelPool) Get() (*amqp.Channel, error) {
	if atomic.LoadInt32(&cp.closed) == 1 {
		return nil, fmt.Errorf("channel pool is closed")
	}

	select {
	case ch := <-cp.channels:
		if ch != nil && !ch.IsClosed() {
			return ch, nil
		}
		// 失效通道直接丢弃，落到下面的新建逻辑
	default:
	}

	conn := cp.cm.GetConnection()
	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("connection is not available")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return ch, nil
}

// Return 归还通道，池满或通道失效则关闭
func (cp *ChannelPool) Return(ch *amqp.Channel) {
	if atomic.LoadInt32(&cp.closed) == 1 {
		if ch != nil && !ch.IsClosed() {
			ch.Close()
		}
		return
	}

	if ch == nil || ch.IsClosed() {
		return
	}

	select {
	case cp.channels <- ch:
	default:
		ch.Close()
	}
}

// Close 关闭池及池中所有通道
func (cp *ChannelPool) Close() {
	if !atomic.CompareAndSwapInt32(&cp.closed, 0, 1) {
		return
	}

	close(cp.channels)
	for ch := range cp.channels {
		if ch != nil && !ch.IsClosed() {
			ch.Close()
		}
	}
}
